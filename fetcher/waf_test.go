package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/harvestmux/model"
)

const wafListing = `<html><head><title>Index of /waf</title></head><body>
<h1>Index of /waf</h1>
<table>
<tr><th><a href="?C=N;O=D">Name</a></th><th><a href="?C=M;O=A">Last modified</a></th><th><a href="?C=S;O=A">Size</a></th></tr>
<tr><td><a href="/">Parent Directory</a></td><td>&nbsp;</td><td>-</td></tr>
<tr><td><a href="nested/">nested/</a></td><td>2024-01-01 10:00</td><td>-</td></tr>
<tr><td><a href="first.xml">first.xml</a></td><td>2024-01-01 10:00</td><td>2.1K</td></tr>
<tr><td><a href="second.xml">second.xml</a></td><td>2024-02-02 12:30</td><td>4.0K</td></tr>
</table>
</body></html>`

func wafSource(url string) *model.HarvestSource {
	return &model.HarvestSource{
		Id:         "source-waf",
		Name:       "Test Source (WAF)",
		Url:        url,
		SourceType: model.SourceTypeWaf,
	}
}

func wafServer(t *testing.T, failFiles bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/waf/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, wafListing)
	})
	mux.HandleFunc("/waf/first.xml", func(w http.ResponseWriter, r *http.Request) {
		if failFiles {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<metadata id="first"/>`)
	})
	mux.HandleFunc("/waf/second.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<metadata id="second"/>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchWaf(t *testing.T) {
	server := wafServer(t, false)

	records, err := NewSourceFetcher().Fetch(context.Background(), wafSource(server.URL+"/waf/"))
	require.Nil(t, err)
	require.Len(t, records, 2)

	sort.Slice(records, func(i, j int) bool { return records[i].Identifier < records[j].Identifier })

	assert.Equal(t, "first.xml", records[0].Identifier)
	assert.Equal(t, "first.xml", records[0].Dataset["title"])
	assert.Equal(t, `<metadata id="first"/>`, records[0].Dataset["content"])
	assert.Equal(t, "2024-01-01T10:00:00Z", records[0].Dataset["modified"])
	assert.NotEmpty(t, records[0].Raw)

	assert.Equal(t, "second.xml", records[1].Identifier)
	assert.Equal(t, `<metadata id="second"/>`, records[1].Dataset["content"])
}

// one failed file fails the whole fetch: the comparator must never see a
// partial snapshot
func TestFetchWafPartialFailure(t *testing.T) {
	server := wafServer(t, true)

	_, err := NewSourceFetcher().Fetch(context.Background(), wafSource(server.URL+"/waf/"))
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "first.xml")
}

func TestFetchWafUnreachable(t *testing.T) {
	_, err := NewSourceFetcher().Fetch(context.Background(), wafSource("http://127.0.0.1:1/waf/"))
	require.NotNil(t, err)
}

func TestFetchWafContentChangeChangesDataset(t *testing.T) {
	entry := wafEntry{Name: "first.xml", Url: "http://example.test/waf/first.xml"}
	a := synthesizeWafRecord(entry, []byte(`<metadata version="1"/>`))
	b := synthesizeWafRecord(entry, []byte(`<metadata version="2"/>`))
	assert.NotEqual(t, a.Dataset["content"], b.Dataset["content"])
	assert.Equal(t, a.Identifier, b.Identifier)
}
