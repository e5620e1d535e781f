package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

// OOBRedirectURL asks the authorization server to display the code instead
// of redirecting, for console use.
const OOBRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

const shutdownTimeout = 5 * time.Second

// Authorizer obtains a token for config by running an authorization flow.
type Authorizer interface {
	Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

type BrowserOpener func(url string) error

type FlowConfig struct {
	Mode     core.AuthMode
	Hostname string
	// Port 0 binds an ephemeral port.
	Port            int
	CallbackTimeout time.Duration
	OpenBrowser     BrowserOpener
	Out             io.Writer
	In              io.Reader
	HTTPClient      *http.Client
	Logger          core.Logger
}

// InstalledFlow runs the installed application authorization code flow with
// PKCE, receiving the code on a loopback listener or from the console.
type InstalledFlow struct {
	config FlowConfig
}

func NewInstalledFlow(cfg FlowConfig) *InstalledFlow {
	if !cfg.Mode.Valid() {
		cfg.Mode = core.AuthModeBrowser
	}
	cfg.Hostname = strings.TrimSpace(cfg.Hostname)
	if cfg.Hostname == "" {
		cfg.Hostname = core.DefaultHostname
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = core.DefaultCallbackTimeout
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = browser.OpenURL
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	_, cfg.Logger = core.ResolveLogger("easygoogle.auth", nil, cfg.Logger)
	return &InstalledFlow{config: cfg}
}

func (f *InstalledFlow) Mode() core.AuthMode {
	if f == nil {
		return ""
	}
	return f.config.Mode
}

func (f *InstalledFlow) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	if f == nil {
		return nil, core.AuthFlowError(errors.New("flow is nil"), "authorization flow is not configured")
	}
	if config == nil {
		return nil, core.BadInputError("auth: oauth2 config is required")
	}
	if f.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.config.HTTPClient)
	}
	switch f.config.Mode {
	case core.AuthModeConsole:
		return f.runConsole(ctx, config)
	case core.AuthModeBrowser, core.AuthModeSilent:
		return f.runLoopback(ctx, config)
	default:
		return nil, core.AuthFlowError(
			fmt.Errorf("mode %s", f.config.Mode),
			"auth mode does not run an authorization flow",
		)
	}
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

func (f *InstalledFlow) runLoopback(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(f.config.Hostname, strconv.Itoa(f.config.Port)))
	if err != nil {
		return nil, core.AuthFlowError(err, "could not start callback listener")
	}
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://%s:%d/", f.config.Hostname, port)

	state, err := generateState()
	if err != nil {
		_ = listener.Close()
		return nil, core.AuthFlowError(err, "could not generate state")
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleCallback(ctx, &cfg, state, verifier, results))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(results, callbackResult{err: fmt.Errorf("callback server: %w", serveErr)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			core.LogWarn(ctx, f.config.Logger, "failed to shutdown callback server", map[string]any{"error": shutdownErr.Error()})
		}
	}()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	core.LogDebug(ctx, f.config.Logger, "callback listener started", map[string]any{
		"redirect_url": cfg.RedirectURL,
		"mode":         string(f.config.Mode),
	})

	if f.config.Mode == core.AuthModeBrowser {
		if openErr := f.config.OpenBrowser(authURL); openErr != nil {
			core.LogWarn(ctx, f.config.Logger, "failed to open browser", map[string]any{"error": openErr.Error()})
			fmt.Fprintf(f.config.Out, "Please visit this URL to authorize this application: %s\n", authURL)
		} else {
			fmt.Fprintf(f.config.Out, "Your browser has been opened to visit:\n\n    %s\n\n", authURL)
		}
	} else {
		fmt.Fprintf(f.config.Out, "Please visit this URL to authorize this application: %s\n", authURL)
	}

	timer := time.NewTimer(f.config.CallbackTimeout)
	defer timer.Stop()

	select {
	case result := <-results:
		if result.err != nil {
			return nil, core.AuthFlowError(result.err, "authorization flow failed")
		}
		core.LogInfo(ctx, f.config.Logger, "authorization flow completed", nil)
		return result.token, nil
	case <-timer.C:
		return nil, core.AuthFlowError(
			fmt.Errorf("no callback after %s", f.config.CallbackTimeout),
			"authorization flow timed out",
		)
	case <-ctx.Done():
		return nil, core.AuthFlowError(ctx.Err(), "authorization flow cancelled")
	}
}

func (f *InstalledFlow) handleCallback(
	ctx context.Context,
	cfg *oauth2.Config,
	state string,
	verifier string,
	results chan<- callbackResult,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		query := r.URL.Query()
		if errParam := query.Get("error"); errParam != "" {
			err := fmt.Errorf("authorization denied: %s %s", errParam, query.Get("error_description"))
			writeErrorPage(w, err)
			deliver(results, callbackResult{err: err})
			return
		}
		if query.Get("state") != state {
			err := errors.New("invalid state parameter")
			writeErrorPage(w, err)
			deliver(results, callbackResult{err: err})
			return
		}
		code := query.Get("code")
		if code == "" {
			err := errors.New("missing authorization code")
			writeErrorPage(w, err)
			deliver(results, callbackResult{err: err})
			return
		}

		token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			err = fmt.Errorf("exchange authorization code: %w", err)
			writeErrorPage(w, err)
			deliver(results, callbackResult{err: err})
			return
		}
		writeSuccessPage(w)
		deliver(results, callbackResult{token: token})
	}
}

func (f *InstalledFlow) runConsole(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	cfg := *config
	cfg.RedirectURL = OOBRedirectURL
	verifier := oauth2.GenerateVerifier()
	state, err := generateState()
	if err != nil {
		return nil, core.AuthFlowError(err, "could not generate state")
	}
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Fprintf(f.config.Out, "Please visit this URL to authorize this application: %s\n", authURL)
	fmt.Fprint(f.config.Out, "Enter the authorization code: ")

	code, err := readLine(f.config.In)
	if err != nil {
		return nil, core.AuthFlowError(err, "could not read authorization code")
	}
	if code == "" {
		return nil, core.AuthFlowError(errors.New("empty code"), "authorization code is required")
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, core.AuthFlowError(err, "exchange authorization code")
	}
	core.LogInfo(ctx, f.config.Logger, "authorization flow completed", nil)
	return token, nil
}

func readLine(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func deliver(results chan<- callbackResult, result callbackResult) {
	select {
	case results <- result:
	default:
	}
}

func generateState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
    </style>
</head>
<body>
    <h1>%s</h1>
    <p>%s</p>
</body>
</html>`

func writeSuccessPage(w http.ResponseWriter) {
	setSecurityHeaders(w)
	_, _ = fmt.Fprintf(w, pageTemplate,
		"Authentication Successful",
		"Authentication Successful",
		"The authentication flow has completed. You may close this window.",
	)
}

func writeErrorPage(w http.ResponseWriter, err error) {
	setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	_, _ = fmt.Fprintf(w, pageTemplate,
		"Authentication Failed",
		"Authentication Failed",
		html.EscapeString(err.Error()),
	)
}

var _ Authorizer = (*InstalledFlow)(nil)
