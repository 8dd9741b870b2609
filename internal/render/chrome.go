package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// renderFunction is the puppeteer code posted to the ChromeDB /function
// endpoint. It waits for the product-grid selector plus a settle delay so
// lazy-rendered tiles are present before the content snapshot.
const renderFunction = `module.exports = async ({ page, context }) => {
	await page.setViewport({ width: 1920, height: 1080 });
	await page.setUserAgent('Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36');

	try {
		await page.goto(context.url, { waitUntil: 'domcontentloaded', timeout: context.timeoutMs });
		if (context.waitSelector) {
			await page.waitForSelector(context.waitSelector, { timeout: context.timeoutMs });
		}
		await page.waitForTimeout(context.settleMs);
		return await page.content();
	} catch (e) {
		console.error('Error loading page:', e);
		return '<html><body>Error: ' + e.message + '</body></html>';
	}
}`

// fetchWithChrome renders a page through the ChromeDB function endpoint and
// returns the resulting HTML.
func (c *Client) fetchWithChrome(ctx context.Context, pageURL, waitSelector string) (string, error) {
	payload := map[string]interface{}{
		"code": renderFunction,
		"context": map[string]interface{}{
			"url":          pageURL,
			"waitSelector": waitSelector,
			"timeoutMs":    c.opts.RenderTimeout.Milliseconds(),
			"settleMs":     c.opts.RenderSettle.Milliseconds(),
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.ChromeAddr+"/function", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("creating render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling rendering service: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return "", fmt.Errorf("rendering service returned status %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	content := extractContent(body)
	if !looksLikeHTML(content) {
		return "", fmt.Errorf("rendering service returned no HTML for %s", pageURL)
	}
	return content, nil
}

// extractContent unwraps JSON-wrapped responses some service versions
// return ({"data": "<html>..."}), else passes the body through.
func extractContent(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return body
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return body
	}
	if data, ok := result["data"].(string); ok && data != "" {
		return data
	}
	if data, ok := result["result"].(string); ok && data != "" {
		return data
	}
	return body
}

// CheckConnection probes the rendering service, for startup diagnostics.
func (c *Client) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.ChromeAddr, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
