package job

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"wikisync/internal/config"
	"wikisync/internal/datasource/httpds"
	"wikisync/internal/mwapi"
	"wikisync/internal/paginate"
)

// Wiki is the remote side of a job: paginated queries plus the siteinfo
// lookups some jobs plan with. *mwapi.Client satisfies it.
type Wiki interface {
	paginate.Requester
	Namespaces(ctx context.Context) ([]int64, error)
	UserGroups(ctx context.Context) ([]string, error)
}

var _ Wiki = (*mwapi.Client)(nil)

// Connect builds the API client described by cfg and logs in when a
// username is configured. The client is shared by every job of the run.
func Connect(ctx context.Context, cfg config.APIConfig) (*mwapi.Client, error) {
	hdr := http.Header{}
	if cfg.UserAgent != "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}
	hc := httpds.NewClient(httpds.Config{
		Timeout:            cfg.Timeout,
		MaxRetries:         cfg.MaxRetries,
		InitialBackoff:     cfg.InitialBackoff,
		MaxBackoff:         cfg.MaxBackoff,
		RateLimit:          cfg.RateLimit,
		RateBurst:          cfg.RateBurst,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		BaseHeaders:        hdr,
	})

	c, err := mwapi.New(mwapi.Config{URL: cfg.URL}, hc)
	if err != nil {
		return nil, err
	}
	if cfg.Username != "" {
		if err := c.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return nil, err
		}
		logrus.WithField("user", cfg.Username).Info("logged in")
	}
	return c, nil
}
