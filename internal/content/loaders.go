package content

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
)

// PageFetcher retrieves page markup
type PageFetcher struct {
	client *Client
}

// NewPageFetcher creates a page fetcher
func NewPageFetcher(client *Client) *PageFetcher {
	return &PageFetcher{client: client}
}

// GetHTML returns the body of locator decoded to UTF-8
func (f *PageFetcher) GetHTML(ctx context.Context, locator string) (string, error) {
	resp, err := f.client.Get(ctx, locator)
	if err != nil {
		return "", err
	}
	text, _, err := resp.Text()
	if err != nil {
		return "", fmt.Errorf("%s: %w", locator, err)
	}
	return text, nil
}

// ScriptLoader fetches scripts and injects them into sandboxes
type ScriptLoader struct {
	client *Client
}

// NewScriptLoader creates a script loader
func NewScriptLoader(client *Client) *ScriptLoader {
	return &ScriptLoader{client: client}
}

// Load fetches src and injects it into section of target. Static servers
// that answer unknown paths with an HTML index are caught by sniffing the
// body.
func (l *ScriptLoader) Load(ctx context.Context, src, section string, target *sandbox.Context) error {
	resp, err := l.client.Get(ctx, src)
	if err != nil {
		return err
	}
	if resp.IsHTML() {
		return fmt.Errorf("%s: %w: %s", src, ErrUnexpectedType, resp.MIME)
	}
	code, _, err := resp.Text()
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return target.InjectScript(ctx, section, src, code)
}

var _ sandbox.ScriptLoader = (*ScriptLoader)(nil)
