package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"wisdar/api"
	"wisdar/config"
	"wisdar/model"
	"wisdar/session"
	"wisdar/storage"
	"wisdar/store"
	"wisdar/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalModal("Configuration Error", err.Error())
		return
	}

	dataDir := cfg.DataDir()
	log := config.InitLogger(dataDir)

	client := api.New(cfg.ServerURL, log)
	st := store.New(log)

	cache, err := storage.NewConversationCache(dataDir)
	if err != nil {
		log.Warn().Err(err).Msg("conversation cache unavailable")
		cache = nil
	}
	defer func() {
		if cache != nil {
			_ = cache.Close()
		}
	}()

	media, err := storage.NewMediaCache(config.GetMediaCacheDir())
	if err != nil {
		log.Warn().Err(err).Msg("media cache unavailable")
		media = nil
	}

	// The notifier and the unauthorized hook post into whichever program is
	// currently running.
	var program *tea.Program
	notify := func(title, message string) {
		if program != nil {
			program.Send(ui.Notification(title, message))
		}
	}
	client.OnUnauthorized = func() {
		log.Warn().Msg("session expired")
		if program != nil {
			program.Send(ui.Unauthorized())
		}
	}

	sess := session.New(client, st, cache, media, notify, log)
	defer sess.Close()

	creds := loadCredentialStore(cfg, dataDir)
	user, password := authenticate(sess, cfg, creds, dataDir, log)
	if user == nil {
		return
	}

	if password != "" && creds != nil {
		if err := creds.Save(dataDir, &config.Credentials{Email: user.Email, Password: password}); err != nil {
			log.Warn().Err(err).Msg("saving credentials")
		}
	}

	var search *storage.SearchIndex
	if cache != nil {
		search = storage.NewSearchIndex(cache)
	}

	chat := ui.NewChatView(sess, st, cfg, search, log)
	p := tea.NewProgram(chat, tea.WithAltScreen())
	program = p

	// Store mutations arrive from the stream goroutine; forward them into
	// the render loop.
	unsubscribe := st.Subscribe(func() {
		p.Send(ui.StoreChanged())
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// authenticate tries stored credentials first, then the interactive login.
// Returns the signed-in user and, when the user asked to be remembered, the
// password to persist.
func authenticate(sess *session.Session, cfg *config.Config, creds *config.CredentialStore, dataDir string, log zerolog.Logger) (*model.User, string) {
	if creds != nil && creds.Exists(dataDir) {
		if stored, err := creds.Load(dataDir); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			user, err := sess.Login(ctx, stored.Email, stored.Password)
			cancel()
			if err == nil {
				return user, ""
			}
			log.Warn().Err(err).Msg("stored credentials rejected")
		} else {
			log.Warn().Err(err).Msg("loading stored credentials")
		}
	}

	login := ui.NewLoginView(sess, cfg.Email, cfg.RememberMe)
	p := tea.NewProgram(login, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	final, ok := finalModel.(ui.LoginView)
	if !ok || final.Authenticated() == nil {
		return nil, ""
	}
	if final.RememberMe() {
		return final.Authenticated(), final.Password()
	}
	return final.Authenticated(), ""
}

// loadCredentialStore builds the configured credential store, prompting for
// the passphrase when the encrypted store is in use.
func loadCredentialStore(cfg *config.Config, dataDir string) *config.CredentialStore {
	method := config.SecurityMethod(cfg.CredentialsMethod)
	store := config.NewCredentialStore(method)
	if method != config.SecurityPassphrase || !store.Exists(dataDir) {
		return store
	}

	prompt := ui.NewPassphraseView("Unlock stored credentials")
	p := tea.NewProgram(prompt, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return store
	}
	if final, ok := finalModel.(ui.PassphraseView); ok && final.Value() != "" {
		store.SetPassphrase(final.Value())
		return store
	}
	// Skipped: fall back to interactive login without stored credentials.
	return nil
}

func fatalModal(title, message string) {
	p := tea.NewProgram(ui.NewErrorModal(title, message), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
