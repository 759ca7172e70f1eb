package helpers

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/config"
	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

// BrowserTest provides a playwright browser and page for UI testing
type BrowserTest struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	Page    playwright.Page
	t       *testing.T
}

// NewBrowserTest launches chromium and opens a page whose actions time out after cfg.Timeout.
func NewBrowserTest(t *testing.T, cfg config.BrowserConfig) (*BrowserTest, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: 1440, Height: 1000},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	timeoutMS := float64(cfg.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMS)
	page.SetDefaultNavigationTimeout(timeoutMS)

	return &BrowserTest{
		pw:      pw,
		browser: browser,
		Page:    page,
		t:       t,
	}, nil
}

// Close cleans up browser resources
func (bt *BrowserTest) Close() error {
	var errs []error
	if bt.Page != nil {
		if err := bt.Page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}
	if bt.browser != nil {
		if err := bt.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if bt.pw != nil {
		if err := bt.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	return nil
}

// CaptureDebugInfo writes a full-page screenshot and the page HTML to dir.
func (bt *BrowserTest) CaptureDebugInfo(dir, reason string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		bt.t.Logf("Failed to create debug directory: %v", err)
		return
	}

	base := fmt.Sprintf("%s-%s-%s-%s",
		unsafeFileChars.ReplaceAllString(bt.t.Name(), "_"),
		reason,
		time.Now().Format("20060102-150405"),
		uuid.NewString()[:8],
	)

	screenshotPath := filepath.Join(dir, base+".png")
	if _, err := bt.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(screenshotPath),
		FullPage: playwright.Bool(true),
	}); err != nil {
		bt.t.Logf("Failed to capture screenshot: %v", err)
	} else {
		bt.t.Logf("Screenshot saved: %s", screenshotPath)
	}

	content, err := bt.Page.Content()
	if err != nil {
		bt.t.Logf("Failed to capture HTML: %v", err)
		return
	}
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(content), 0o644); err != nil {
		bt.t.Logf("Failed to write HTML: %v", err)
		return
	}
	bt.t.Logf("HTML saved: %s", htmlPath)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// PageURL joins the portal root and a hash route such as "/adjusted-station-data".
func PageURL(baseURL, route string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid UI URL %q: %w", baseURL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = route
	return u.String(), nil
}

// EnsurePlaywrightInstalled checks if Playwright-Go is installed
// This will attempt to install it if not present
func EnsurePlaywrightInstalled(t *testing.T) {
	pw, err := playwright.Run()
	if err != nil {
		t.Logf("Playwright not available, attempting to install...")
		if installErr := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); installErr != nil {
			require.NoError(t, installErr, "Failed to install Playwright. Run: go run github.com/playwright-community/playwright-go/cmd/playwright@latest install --with-deps chromium")
		}
		pw, err = playwright.Run()
		require.NoError(t, err, "Failed to start Playwright after installation")
	}
	if pw != nil {
		pw.Stop()
	}
}
