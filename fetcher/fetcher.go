package fetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/model"
)

// RawRecord is one candidate record decoded from an external feed: an opaque
// payload plus the publisher-assigned identifier. Identifier may be empty
// when the feed entry is malformed, downstream validation flags it.
type RawRecord struct {
	Identifier string
	Dataset    map[string]interface{}
	Raw        []byte
}

// Fetcher turns a harvest source descriptor into the complete set of
// candidate records. A Fetch either returns the full snapshot or an error,
// never a partial set.
type Fetcher interface {
	Fetch(ctx context.Context, source *model.HarvestSource) ([]RawRecord, error)
}

// SourceFetcher is the production Fetcher, dispatching on the source type.
type SourceFetcher struct {
	Client *http.Client
}

func NewSourceFetcher() *SourceFetcher {
	return &SourceFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
}

func (f *SourceFetcher) Fetch(ctx context.Context, source *model.HarvestSource) ([]RawRecord, error) {
	switch source.SourceType {
	case model.SourceTypeDcatUS:
		return f.fetchDcatUS(ctx, source)
	case model.SourceTypeWaf:
		return f.fetchWaf(ctx, source)
	default:
		return nil, errors.Errorf("unknown source type: %s", source.SourceType)
	}
}
