package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/kodegen/mcp-gateway/internal/toolapi"
)

const (
	webFetchTimeout      = 15 * time.Second
	webFetchMaxBody      = 2 << 20 // 2MB
	webFetchMaxRunes     = 8000
	webFetchUserAgent    = "kodegen-citescrape/1.0"
	webFetchMaxRedirects = 10
)

var webFetchClient = &http.Client{
	Timeout: webFetchTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= webFetchMaxRedirects {
			return fmt.Errorf("exceeded max redirects (%d)", webFetchMaxRedirects)
		}
		return nil
	},
}

func newCitescrapeTools(string) []toolapi.Tool {
	return []toolapi.Tool{&webFetchTool{}}
}

type webFetchTool struct{}

func (t *webFetchTool) Name() string { return "web_fetch" }
func (t *webFetchTool) Description() string {
	return "Fetch a URL and extract its page title and main text content."
}
func (t *webFetchTool) Traits() toolapi.Traits {
	return toolapi.Traits{ReadOnly: true, OpenWorld: true}
}
func (t *webFetchTool) Init(context.Context) error { return nil }
func (t *webFetchTool) Close() error                { return nil }

func (t *webFetchTool) InputSchema() json.RawMessage {
	return toolapi.BuildSchema(
		toolapi.SchemaParam{Name: "url", Type: "string", Description: "URL to fetch (http:// or https://)", Required: true},
	)
}

func (t *webFetchTool) Execute(ctx context.Context, args json.RawMessage) (toolapi.Result, error) {
	var a struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return toolapi.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	url := strings.TrimSpace(a.URL)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return toolapi.Result{Error: "url must start with http:// or https://"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return toolapi.Result{Error: fmt.Sprintf("request creation failed: %v", err)}, nil
	}
	req.Header.Set("User-Agent", webFetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := webFetchClient.Do(req)
	if err != nil {
		return toolapi.Result{Error: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return toolapi.Result{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)}, nil
	}

	limited := io.LimitReader(resp.Body, webFetchMaxBody)
	contentType := resp.Header.Get("Content-Type")
	ctLower := strings.ToLower(contentType)

	if strings.Contains(ctLower, "application/json") {
		raw, _ := io.ReadAll(limited)
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err == nil {
			return toolapi.Result{Output: truncateFetched(pretty.String())}, nil
		}
		return toolapi.Result{Output: truncateFetched(string(raw))}, nil
	}
	if strings.Contains(ctLower, "text/plain") {
		raw, _ := io.ReadAll(limited)
		return toolapi.Result{Output: truncateFetched(string(raw))}, nil
	}
	if !strings.Contains(ctLower, "text/html") && !strings.Contains(ctLower, "application/xhtml") {
		return toolapi.Result{Error: fmt.Sprintf("unsupported content type: %s", contentType)}, nil
	}

	utf8Reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		utf8Reader = limited
	}

	title, description, content, err := extractPageContent(utf8Reader)
	if err != nil {
		return toolapi.Result{Error: fmt.Sprintf("parse failed: %v", err)}, nil
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n\n", title))
	}
	if description != "" {
		sb.WriteString(fmt.Sprintf("Summary: %s\n\n", description))
	}
	if content == "" {
		sb.WriteString("(no extractable body content)")
	} else {
		sb.WriteString(truncateFetched(content))
	}
	return toolapi.Result{Output: sb.String()}, nil
}

func truncateFetched(content string) string {
	runes := []rune(content)
	if len(runes) > webFetchMaxRunes {
		return string(runes[:webFetchMaxRunes]) + "\n\n...(truncated)"
	}
	return content
}

// extractPageContent walks an HTML document and extracts the <title>, a
// meta description, and visible body text, skipping script/style/nav/etc.
func extractPageContent(r io.Reader) (title, description, content string, err error) {
	tokenizer := html.NewTokenizer(r)

	var sb strings.Builder
	var inTitle, inSkip bool
	skipDepth := 0
	articleDepth := 0

	skipTags := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"nav": true, "footer": true, "form": true,
		"aside": true, "iframe": true, "svg": true,
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			parseErr := tokenizer.Err()
			result := collapseBlankLines(strings.TrimSpace(sb.String()))
			if parseErr == io.EOF {
				return title, description, result, nil
			}
			return title, description, result, parseErr

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "meta" && hasAttr && description == "" {
				var nameVal, propertyVal, contentVal string
				for {
					key, val, more := tokenizer.TagAttr()
					switch string(key) {
					case "name":
						nameVal = strings.ToLower(string(val))
					case "property":
						propertyVal = strings.ToLower(string(val))
					case "content":
						contentVal = string(val)
					}
					if !more {
						break
					}
				}
				if nameVal == "description" && contentVal != "" {
					description = contentVal
				} else if propertyVal == "og:description" && contentVal != "" {
					description = contentVal
				}
				continue
			}

			if tt == html.SelfClosingTagToken {
				continue
			}

			if tagName == "title" {
				inTitle = true
			}
			if tagName == "article" {
				articleDepth++
			}
			if tagName == "header" && articleDepth == 0 {
				inSkip = true
				skipDepth++
			}
			if skipTags[tagName] {
				inSkip = true
				skipDepth++
			}
			if !inSkip && isBlockElement(tagName) && sb.Len() > 0 {
				s := sb.String()
				if s[len(s)-1] != '\n' {
					sb.WriteString("\n")
				}
			}
			if !inSkip && (tagName == "td" || tagName == "th") && sb.Len() > 0 {
				s := sb.String()
				if s[len(s)-1] != '\n' && s[len(s)-1] != '|' {
					sb.WriteString(" | ")
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "title" {
				inTitle = false
			}
			if tagName == "article" && articleDepth > 0 {
				articleDepth--
			}
			isPageHeader := tagName == "header" && articleDepth == 0
			if (skipTags[tagName] || isPageHeader) && skipDepth > 0 {
				skipDepth--
				if skipDepth == 0 {
					inSkip = false
				}
			}

		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inTitle && title == "" {
				title = text
				continue
			}
			if !inSkip {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	blankCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "br", "hr", "blockquote", "pre",
		"article", "section", "main",
		"table", "thead", "tbody", "tfoot":
		return true
	}
	return false
}
