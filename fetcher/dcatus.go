package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/model"
)

type dcatUSCatalog struct {
	Dataset []json.RawMessage `json:"dataset"`
}

// fetchDcatUS downloads a DCAT-US catalog document and decodes its dataset
// list. A document that fails to parse as a whole is a fetch failure; a
// malformed individual entry is not, it surfaces later as a record-level
// validation error.
func (f *SourceFetcher) fetchDcatUS(ctx context.Context, source *model.HarvestSource) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid harvest source url")
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cannot reach harvest source")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("harvest source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read harvest source response")
	}
	// Remove BOM before parsing, see https://en.wikipedia.org/wiki/Byte_order_mark for details.
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))

	var catalog dcatUSCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, errors.Wrap(err, "cannot parse catalog document")
	}

	records := make([]RawRecord, 0, len(catalog.Dataset))
	for _, raw := range catalog.Dataset {
		var dataset map[string]interface{}
		if err := json.Unmarshal(raw, &dataset); err != nil {
			records = append(records, RawRecord{Dataset: map[string]interface{}{}, Raw: raw})
			continue
		}
		identifier, _ := dataset["identifier"].(string)
		records = append(records, RawRecord{Identifier: identifier, Dataset: dataset, Raw: raw})
	}
	return records, nil
}
