package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/browser"
)

// ConsolePrompt runs the interactive part of the authorization code grant
// on a terminal: it prints the authorization URL, tries to open a browser
// and reads the redirect URL the user pastes back.
type ConsolePrompt struct {
	In          io.Reader
	Out         io.Writer
	OpenBrowser func(url string) error
}

// NewConsolePrompt returns a prompt on stdin and stderr.
func NewConsolePrompt() *ConsolePrompt {
	return &ConsolePrompt{
		In:          os.Stdin,
		Out:         os.Stderr,
		OpenBrowser: browser.OpenURL,
	}
}

// Authorize implements farmos.AuthorizationPrompt.
func (p *ConsolePrompt) Authorize(ctx context.Context, authorizationURL string) (string, error) {
	_, _ = fmt.Fprintf(p.Out, "Open the following URL and authorize access:\n\n  %s\n\n", authorizationURL)

	if p.OpenBrowser != nil {
		err := p.OpenBrowser(authorizationURL)
		if err != nil {
			_, _ = fmt.Fprintf(p.Out, "Could not open a browser: %v\n", err)
		}
	}

	_, _ = fmt.Fprint(p.Out, "Paste the full URL you were redirected to: ")

	type line struct {
		text string
		err  error
	}

	lines := make(chan line, 1)

	go func() {
		reader := bufio.NewReader(p.In)
		text, err := reader.ReadString('\n')

		if err == io.EOF && text != "" {
			err = nil
		}

		lines <- line{text: strings.TrimSpace(text), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-lines:
		if result.err != nil {
			return "", fmt.Errorf("failed to read redirect URL: %w", result.err)
		}

		return result.text, nil
	}
}
