package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/gocolly/colly"
	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/model"
)

type wafEntry struct {
	Name     string
	Url      string
	Modified time.Time
}

// fetchWaf crawls a WAF-style directory listing and downloads every listed
// file concurrently. The full snapshot is materialized before returning so
// the comparator never observes a partially fetched set; any file failure or
// cancellation fails the whole fetch.
func (f *SourceFetcher) fetchWaf(ctx context.Context, source *model.HarvestSource) ([]RawRecord, error) {
	entries, err := f.listWaf(ctx, source.Url)
	if err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	records := make([]RawRecord, len(entries))
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, err := f.fetchWafFile(ctx, entries[i].Url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "cannot fetch %s", entries[i].Name)
				}
				return
			}
			records[i] = synthesizeWafRecord(entries[i], body)
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "harvest cancelled")
	}
	return records, nil
}

// synthesizeWafRecord builds a catalog record from a directory listing entry.
// WAF sources have no native catalog JSON, the file name doubles as both
// identifier and title and the body participates in content hashing.
func synthesizeWafRecord(entry wafEntry, body []byte) RawRecord {
	dataset := map[string]interface{}{
		"identifier":  entry.Name,
		"title":       entry.Name,
		"describedBy": entry.Url,
		"content":     string(body),
	}
	if !entry.Modified.IsZero() {
		dataset["modified"] = entry.Modified.UTC().Format(time.RFC3339)
	}
	raw, _ := json.Marshal(dataset)
	return RawRecord{Identifier: entry.Name, Dataset: dataset, Raw: raw}
}

// listWaf scrapes file entries out of an Apache fancy-index style listing
// page. Sort links, parent links and subdirectories are skipped.
func (f *SourceFetcher) listWaf(ctx context.Context, url string) ([]wafEntry, error) {
	var (
		entries  []wafEntry
		visitErr error
	)

	c := colly.NewCollector()
	c.OnHTML("tr", func(e *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		link := e.DOM.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		if strings.HasPrefix(href, "?") || strings.HasPrefix(href, "/") || strings.HasSuffix(href, "/") {
			return
		}

		entry := wafEntry{Name: href, Url: e.Request.AbsoluteURL(href)}
		if t, err := dateparse.ParseAny(listingDate(link)); err == nil {
			entry.Modified = t
		}
		entries = append(entries, entry)
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, errors.Wrap(err, "cannot reach harvest source")
	}
	if visitErr != nil {
		return nil, errors.Wrap(visitErr, "cannot reach harvest source")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "harvest cancelled")
	}
	return entries, nil
}

// listingDate extracts the Last-Modified cell, which sits right after the
// name cell in a fancy-index table row.
func listingDate(link *goquery.Selection) string {
	return strings.TrimSpace(link.Parent().Next().Text())
}

func (f *SourceFetcher) fetchWafFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
