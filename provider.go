package modelfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ManifestProvider resolves a model identifier into the ordered list of
// files to download. Implementations must be safe for concurrent use.
type ManifestProvider interface {
	// ModelFiles returns the model's file specs in manifest order.
	// An empty slice means the model has nothing downloadable.
	ModelFiles(ctx context.Context, modelID string) ([]FileSpec, error)
}

// hubFilesResponse is the envelope of the hub's repo-files endpoint.
type hubFilesResponse struct {
	Code int `json:"Code"`
	Data struct {
		Files []hubFile `json:"Files"`
	} `json:"Data"`
}

// hubFile is one entry of the hub's file listing.
type hubFile struct {
	// Name is the file's relative path within the repository.
	Name string `json:"Name"`

	// Size is the file size in bytes.
	Size int64 `json:"Size"`

	// Sha256 is the expected content hash, possibly empty.
	Sha256 string `json:"Sha256"`

	// Type distinguishes blobs from tree (directory) entries.
	Type string `json:"Type"`

	// Downloadable marks entries the hub allows fetching.
	// Absent means downloadable.
	Downloadable *bool `json:"Downloadable"`
}

// HubClient fetches model manifests from a ModelScope-compatible hub.
// Implements ManifestProvider.
type HubClient struct {
	// baseURL is the base URL of the hub (e.g., "https://modelscope.cn").
	baseURL string

	// httpClient is used for hub requests.
	httpClient HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger
}

// Ensure HubClient implements ManifestProvider.
var _ ManifestProvider = (*HubClient)(nil)

// NewHubClient creates a hub client for baseURL.
// The baseURL is normalized by removing any trailing slashes.
// If client is nil, http.DefaultClient is used.
func NewHubClient(baseURL string, client HTTPClient, logger Logger) *HubClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HubClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// ModelFiles fetches the hub's file listing for modelID and turns it into
// download specs. Tree entries, nameless entries, and entries the hub marks
// non-downloadable are skipped.
func (h *HubClient) ModelFiles(ctx context.Context, modelID string) ([]FileSpec, error) {
	if err := ValidateModelID(modelID); err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/api/v1/models/%s/repo/files?Recursive=true", h.baseURL, modelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching file list for %s: %w: %v", modelID, ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching file list for %s: status %d: %w", modelID, resp.StatusCode, ErrManifestError)
	}

	var listing hubFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("parsing file list for %s: %w", modelID, ErrManifestError)
	}

	specs := make([]FileSpec, 0, len(listing.Data.Files))
	for _, f := range listing.Data.Files {
		if f.Name == "" {
			if h.logger != nil {
				h.logger.Warn("skipping file entry without a name", "model", modelID)
			}
			continue
		}
		if f.Type == "tree" {
			continue
		}
		if f.Downloadable != nil && !*f.Downloadable {
			if h.logger != nil {
				h.logger.Info("skipping non-downloadable file", "name", f.Name)
			}
			continue
		}
		specs = append(specs, FileSpec{
			Name: f.Name,
			Size: f.Size,
			Hash: strings.ToLower(f.Sha256),
			URL:  h.resolveURL(modelID, f.Name),
		})
	}

	if h.logger != nil {
		h.logger.Info("fetched model file list", "model", modelID, "files", len(specs))
	}
	return specs, nil
}

// resolveURL builds the download URL for one file of a model.
func (h *HubClient) resolveURL(modelID, name string) string {
	// Path segments of the filename must survive URL encoding individually.
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/models/%s/resolve/master/%s", h.baseURL, modelID, strings.Join(parts, "/"))
}
