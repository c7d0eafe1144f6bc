package provider

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"support_worker/pkg/httputil"
	"support_worker/pkg/logger"
)

// AuthConfig locates the OAuth client secret and the cached user token.
type AuthConfig struct {
	CredentialsFile string
	TokenFile       string
	// Prompt and Input drive the one-time consent flow when no token is cached.
	Prompt io.Writer
	Input  io.Reader
}

// NewGmailService builds an authorized Gmail client from a desktop OAuth
// client file. A missing token is obtained interactively and cached.
func NewGmailService(ctx context.Context, cfg AuthConfig) (*gmail.Service, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		if cfg.Input == nil {
			return nil, fmt.Errorf("no cached gmail token at %s: %w", cfg.TokenFile, err)
		}
		tok, err = tokenFromWeb(ctx, oauthConfig, cfg.Prompt, cfg.Input)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	// token refreshes and API calls share one pooled transport
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.NewClient(httputil.GmailClientConfig()))
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config, prompt io.Writer, input io.Reader) (*oauth2.Token, error) {
	if prompt == nil {
		prompt = os.Stdout
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(prompt, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(input, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	logger.Info("Saving credential file to: %s", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
