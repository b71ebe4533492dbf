package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"pilot/pkg/agent"
	"pilot/pkg/config"
	"pilot/pkg/console"
	"pilot/pkg/diff"
	"pilot/pkg/exec"
	"pilot/pkg/git"
	"pilot/pkg/lifecycle"
	"pilot/pkg/metrics"
	"pilot/pkg/selfupdate"
	"pilot/pkg/session"
	"pilot/pkg/tools"
	"pilot/pkg/turn"
	"pilot/pkg/utils"
	"pilot/pkg/validation"
	"pilot/pkg/workset"
)

// passwordEnvVar lets the secrets file be unlocked without a prompt.
const passwordEnvVar = "PILOT_PASSWORD"

// handleSecretsDecryption loads the encrypted secrets file into memory when
// one exists.
func handleSecretsDecryption(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}

	password := os.Getenv(passwordEnvVar)
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("secrets file is encrypted; set %s or run in a terminal", passwordEnvVar)
		}
		fmt.Print("Enter the pilot password for this project: ")
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
		for i := range raw {
			raw[i] = 0
		}
	}

	secrets, err := config.DecryptSecretsFile(projectDir, password)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	config.LogInfo("🔐 Loaded %d secret(s)", len(secrets))
	return nil
}

type sessionDeps struct {
	sessionID string
	root      string
	executor  exec.Executor
	repo      *git.Repo
	runner    *validation.Runner
	store     *selfupdate.Store
	db        *sql.DB
	recorder  *metrics.PrometheusRecorder
}

// buildSession wires the agent, tools and console into a coordinator.
func buildSession(cfg *config.Config, deps sessionDeps) (*session.Coordinator, error) {
	client, err := agent.NewLLMClient(cfg.Agent, deps.recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	ws := workset.New(deps.root)
	engine := diff.NewEngine(deps.root, ws, deps.repo)

	var proposer *selfupdate.Proposer
	registry, err := tools.NewRegistry(
		tools.NewReadFileTool(deps.executor, ws, 0),
		tools.NewListFilesTool(deps.executor, ws, 0),
		tools.NewGetDiffTool(deps.executor, deps.root, 0),
		tools.NewAddToWorkingSetTool(ws),
		tools.NewApplyDiffTool(engine),
		tools.NewRunValidationTool(deps.runner, config.GetValidationCommand),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if cfg.SelfUpdate.Enabled {
		proposer = selfupdate.NewProposer(deps.repo, deps.store)
		if err := registry.Register(tools.NewCommitSelfUpdateTool(proposer)); err != nil {
			return nil, fmt.Errorf("failed to register self-update tool: %w", err)
		}
	}

	history := agent.NewHistory(cfg.History.MaxMessages, cfg.History.MaxTokens, tokenCounter(cfg.Agent.Model))
	llmAgent := agent.NewLLMAgent(client, registry, agent.DefaultSystemPrompt, cfg.Agent.MaxTokens, cfg.Agent.Temperature)
	sm := turn.NewStateMachine()

	coordDeps := session.Deps{
		SessionID:  deps.sessionID,
		Agent:      llmAgent,
		History:    history,
		Turn:       sm,
		Lifecycle:  lifecycle.NewManager(tools.NewExecutor(registry), sm, deps.recorder),
		WorkingSet: ws,
		Engine:     engine,
		Console:    console.New(os.Stdout, console.ExternalEditor{}),
		Input:      console.NewLineReader(os.Stdin),
		DB:         deps.db,
		Recorder:   deps.recorder,
		Gatherer:   deps.recorder.Registry(),
	}
	if proposer != nil {
		coordDeps.Updates = proposer
		coordDeps.Restarter = selfupdate.ExecRestarter{}
	}

	config.LogInfo("🚀 pilot ready: model %s, tools %s", llmAgent.Model(), strings.Join(registry.Names(), ", "))
	return session.New(coordDeps)
}

// tokenCounter returns nil when the model has no known encoding; history
// then falls back to its message limit alone.
func tokenCounter(model string) *utils.TokenCounter {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		config.LogInfo("⚠️  Token budget disabled: %v", err)
		return nil
	}
	return counter
}
