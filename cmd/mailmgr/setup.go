package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-manager/internal/classify"
	"github.com/nhle/mail-manager/internal/credential"
	"github.com/nhle/mail-manager/internal/model"
)

func newSetupCmd(app *appContext) *cobra.Command {
	var (
		host     string
		port     string
		username string
		password string
		noTLS    bool
		folder   string

		mode     string
		provider string
		apiModel string
		apiKey   string

		localModel string
		localHost  string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the mailbox connection and processing mode",
		Long: "setup writes the connection settings to the config file and stores\n" +
			"secrets in the system keyring. Re-running it updates only the values\n" +
			"whose flags are set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			if host != "" {
				cfg.Mailbox.Host = host
			}
			if port != "" {
				cfg.Mailbox.Port = port
			}
			if username != "" {
				cfg.Mailbox.Username = username
			}
			if folder != "" {
				cfg.Mailbox.Folder = folder
			}
			if cmd.Flags().Changed("no-tls") {
				cfg.Mailbox.TLS = !noTLS
			}

			if mode != "" {
				switch m := model.AIMode(mode); m {
				case model.AIModeLocal, model.AIModeAPI, model.AIModeHybrid:
					cfg.AI.Mode = m
				default:
					return fmt.Errorf(
						"unknown mode %q (want local, api, or hybrid)", mode)
				}
			}
			if provider != "" {
				cfg.AI.API.Provider = provider
			}
			if apiModel != "" {
				cfg.AI.API.Model = apiModel
			}
			if localModel != "" {
				cfg.AI.Local.Model = localModel
			}
			if localHost != "" {
				cfg.AI.Local.Host = localHost
			}

			if password != "" {
				if err := credential.Set(credential.KeyIMAPPassword, password); err != nil {
					return err
				}
				pterm.Success.Println("Mailbox password stored in keyring")
			}
			if apiKey != "" {
				if err := credential.Set(credential.KeyAPIKey, apiKey); err != nil {
					return err
				}
				pterm.Success.Println("API key stored in keyring")
			}

			if err := model.SaveConfig(*app.configPath, cfg); err != nil {
				return err
			}
			pterm.Success.Printf("Configuration written to %s\n", *app.configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "IMAP server host")
	cmd.Flags().StringVar(&port, "port", "", "IMAP server port")
	cmd.Flags().StringVar(&username, "username", "", "mailbox username")
	cmd.Flags().StringVar(&password, "password", "",
		"mailbox password (stored in the system keyring)")
	cmd.Flags().BoolVar(&noTLS, "no-tls", false, "use STARTTLS instead of TLS")
	cmd.Flags().StringVar(&folder, "folder", "", "mailbox folder to sync")
	cmd.Flags().StringVar(&mode, "mode", "",
		"processing mode (local, api, hybrid)")
	cmd.Flags().StringVar(&provider, "provider", "",
		"cloud provider (openai, deepseek, glm, qwen, minimax, moonshot)")
	cmd.Flags().StringVar(&apiModel, "api-model", "", "cloud model name")
	cmd.Flags().StringVar(&apiKey, "api-key", "",
		"cloud API key (stored in the system keyring)")
	cmd.Flags().StringVar(&localModel, "local-model", "", "local model name")
	cmd.Flags().StringVar(&localHost, "local-host", "",
		"local model endpoint (Ollama-compatible)")
	return cmd
}

func newValidateCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Verify the mailbox connection, credentials, and model endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			gateway, err := app.openGateway(cfg)
			if err != nil {
				return err
			}

			status, err := gateway.ValidateConnection(cmd.Context())
			if err != nil {
				pterm.Error.Printf("Mailbox validation failed: %v\n", err)
				return err
			}
			pterm.Success.Println(status)

			timeout := time.Duration(cfg.AI.RequestTimeoutSec) * time.Second

			if cfg.AI.Mode == model.AIModeLocal || cfg.AI.Mode == model.AIModeHybrid {
				local := classify.NewOllamaClient(
					cfg.AI.Local.Host, cfg.AI.Local.Model, timeout)
				if err := local.ValidateConnection(cmd.Context()); err != nil {
					pterm.Error.Printf("Local model validation failed: %v\n", err)
					return err
				}
				pterm.Success.Printf("Local model %s available at %s\n",
					cfg.AI.Local.Model, cfg.AI.Local.Host)
			}

			if cfg.AI.Mode == model.AIModeAPI || cfg.AI.Mode == model.AIModeHybrid {
				apiKey, _ := credential.Get(credential.KeyAPIKey)
				if apiKey == "" {
					pterm.Warning.Println(
						"No API key stored; cloud model check skipped")
					return nil
				}
				api := classify.NewOpenAIClient(
					cfg.AI.API.Provider, cfg.AI.API.Model, apiKey, timeout)
				if err := api.ValidateConnection(cmd.Context()); err != nil {
					pterm.Error.Printf("Cloud model validation failed: %v\n", err)
					return err
				}
				pterm.Success.Printf("Cloud model %s responding via %s\n",
					api.ModelName(), cfg.AI.API.Provider)
			}

			return nil
		},
	}
}
