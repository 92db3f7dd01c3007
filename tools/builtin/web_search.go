// Package builtin holds the tools shipped with the bot: web search, media
// download, video summarization and image/video generation.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
)

type WebSearchTool struct {
	BaseURL      string
	Timeout      time.Duration
	MaxResults   int
	UserAgent    string
	MaxBodyBytes int64
	HTTP         *http.Client
}

func NewWebSearchTool(baseURL string, timeout time.Duration, maxResults int) *WebSearchTool {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://duckduckgo.com/html/"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		BaseURL:      baseURL,
		Timeout:      timeout,
		MaxResults:   maxResults,
		UserAgent:    "gemini-telegram-userbot/1.0",
		MaxBodyBytes: 2 * 1024 * 1024,
		HTTP:         &http.Client{Timeout: timeout},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for a query and return a short list of results (title, url)."
}

func (t *WebSearchTool) Schema() tools.Schema {
	return tools.Schema{Fields: []tools.Field{
		{Name: "query", Type: tools.TypeString, Description: "Search query.", Required: true},
		{Name: "max_results", Type: tools.TypeInteger, Description: "Optional max results to return."},
	}}
}

type webSearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return tools.Result{}, fmt.Errorf("empty query")
	}

	maxResults := t.MaxResults
	if v, ok := args["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}
	if maxResults > 20 {
		maxResults = 20
	}

	base, err := url.Parse(t.BaseURL)
	if err != nil {
		return tools.Result{}, fmt.Errorf("invalid base url: %w", err)
	}
	u := *base
	qs := u.Query()
	qs.Set("q", query)
	u.RawQuery = qs.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return tools.Result{}, err
	}
	req.Header.Set("User-Agent", t.UserAgent)

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return tools.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tools.Result{}, fmt.Errorf("web_search status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.MaxBodyBytes))
	if err != nil {
		return tools.Result{}, err
	}

	results, err := parseResultsHTML(body, maxResults)
	if err != nil {
		return tools.Result{}, err
	}

	out := map[string]any{
		"engine":       "duckduckgo_html",
		"query":        query,
		"result_count": len(results),
		"results":      results,
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return tools.Result{Text: string(b)}, nil
}

func parseResultsHTML(htmlBytes []byte, maxResults int) ([]webSearchResult, error) {
	root, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, err
	}

	var out []webSearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil || len(out) >= maxResults {
			return
		}
		// Result title links look like: <a class="result__a" href="...">Title</a>
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attr(n, "href")
			title := strings.TrimSpace(textContent(n))
			if href != "" && title != "" {
				out = append(out, webSearchResult{Title: title, URL: normalizeResultURL(href)})
			}
		}
		for c := n.FirstChild; c != nil && len(out) < maxResults; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// normalizeResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<encoded>).
func normalizeResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Path == "/l/" {
		if uddg := u.Query().Get("uddg"); uddg != "" {
			if decoded, err := url.QueryUnescape(uddg); err == nil && decoded != "" {
				return decoded
			}
		}
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, want string) bool {
	for _, part := range strings.Fields(attr(n, "class")) {
		if part == want {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x == nil {
			return
		}
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
