package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxChunkLen = 1000

// IngestURL fetches a web page, extracts its text content and adds it to the
// base paragraph by paragraph. Chunks already present are skipped. It returns
// the number of entries added.
func (b *Base) IngestURL(ctx context.Context, url string) (int, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", url, err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	var paragraphs []string
	doc.Find("p, li, h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) >= 40 {
			paragraphs = append(paragraphs, text)
		}
	})

	added := 0
	for _, chunk := range chunkParagraphs(paragraphs) {
		_, existed, err := b.Add(ctx, chunk, map[string]string{"source": url})
		if err != nil {
			return added, fmt.Errorf("add chunk: %w", err)
		}
		if !existed {
			added++
		}
	}
	return added, nil
}

// chunkParagraphs merges consecutive paragraphs into chunks of at most
// maxChunkLen characters. Oversized paragraphs become their own chunk.
func chunkParagraphs(paragraphs []string) []string {
	var chunks []string
	var current strings.Builder

	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+len(p)+1 > maxChunkLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
