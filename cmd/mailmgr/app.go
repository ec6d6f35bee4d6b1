package main

import (
	"fmt"
	"time"

	"github.com/nhle/mail-manager/internal/classify"
	"github.com/nhle/mail-manager/internal/credential"
	"github.com/nhle/mail-manager/internal/mailbox"
	"github.com/nhle/mail-manager/internal/model"
	"github.com/nhle/mail-manager/internal/store"
)

// appContext wires the components each command needs from the shared
// configuration.
type appContext struct {
	configPath *string
}

func (a *appContext) loadConfig() (*model.AppConfig, error) {
	return model.LoadConfig(*a.configPath)
}

func (a *appContext) openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	path := cfg.DBPath
	if path == "" {
		path = model.DefaultDBPath()
	}
	return store.NewSQLiteStore(path)
}

func (a *appContext) openGateway(cfg *model.AppConfig) (*mailbox.IMAPGateway, error) {
	if cfg.Mailbox.Host == "" || cfg.Mailbox.Username == "" {
		return nil, fmt.Errorf("mailbox is not configured; run 'mailmgr setup' first")
	}

	password, err := credential.Get(credential.KeyIMAPPassword)
	if err != nil {
		return nil, fmt.Errorf(
			"no mailbox password stored; run 'mailmgr setup' first: %w", err)
	}

	return mailbox.NewIMAPGateway(cfg.Mailbox, password), nil
}

// buildEngine assembles the classification engine from the configured
// mode and endpoints. A missing API key is not an error: the engine
// degrades api mode to the local model.
func (a *appContext) buildEngine(cfg *model.AppConfig) *classify.Engine {
	timeout := time.Duration(cfg.AI.RequestTimeoutSec) * time.Second

	localClient := classify.NewOllamaClient(
		cfg.AI.Local.Host, cfg.AI.Local.Model, timeout)
	local := classify.NewLocalProcessor(localClient, cfg.AI.SummaryMinChars, nil)

	apiKey, _ := credential.Get(credential.KeyAPIKey)
	hasAPIKey := apiKey != ""

	var api *classify.LLMProcessor
	if hasAPIKey {
		apiClient := classify.NewOpenAIClient(
			cfg.AI.API.Provider, cfg.AI.API.Model, apiKey, timeout)
		api = classify.NewAPIProcessor(apiClient, cfg.AI.SummaryMinChars, nil)
	}

	hybrid := classify.NewHybridProcessor(
		local, api, cfg.AI.HybridAPIMinChars, hasAPIKey)

	return classify.NewEngine(classify.EngineOptions{
		Mode:      cfg.AI.Mode,
		Rule:      &classify.RuleProcessor{},
		Local:     local,
		API:       engineAPIProcessor(api),
		Hybrid:    hybrid,
		HasAPIKey: hasAPIKey,
	})
}

// engineAPIProcessor keeps a nil *LLMProcessor from becoming a non-nil
// Processor interface value.
func engineAPIProcessor(p *classify.LLMProcessor) classify.Processor {
	if p == nil {
		return nil
	}
	return p
}
