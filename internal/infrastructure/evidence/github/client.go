package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/cv-sentinel/internal/infrastructure/resilience"
)

// Client talks to the GitHub REST API unauthenticated or with a token.
// All calls go through a shared rate limiter; unauthenticated quota is
// 60 requests per hour, so the default limit stays conservative.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
}

func NewClient(baseURL, token string, perSec float64, exec *resilience.Executor) *Client {
	if perSec <= 0 {
		perSec = 1.0
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 3),
		exec:       exec,
	}
}

type repoMeta struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Fork          bool      `json:"fork"`
	SizeKB        int       `json:"size"`
	Stars         int       `json:"stargazers_count"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	CreatedAt     time.Time `json:"created_at"`
	PushedAt      time.Time `json:"pushed_at"`
	IsTemplate    bool      `json:"is_template"`
	TemplateRepo  *struct {
		FullName string `json:"full_name"`
	} `json:"template_repository"`
}

type commitMeta struct {
	Commit struct {
		Author struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// ListRepos returns the user's public repositories sorted by last
// push, newest first.
func (c *Client) ListRepos(ctx context.Context, user string, maxRepos int) ([]repoMeta, error) {
	var out []repoMeta
	for page := 1; len(out) < maxRepos; page++ {
		var batch []repoMeta
		url := fmt.Sprintf("%s/users/%s/repos?per_page=100&page=%d&sort=pushed", c.baseURL, user, page)
		if err := c.getJSON(ctx, "list repos", url, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		if len(batch) < 100 {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PushedAt.After(out[j].PushedAt) })
	if len(out) > maxRepos {
		out = out[:maxRepos]
	}
	return out, nil
}

// GetRepo resolves one repository. A 404 comes back as a *StatusError
// so the caller can map it to "unresolvable" rather than a failure.
func (c *Client) GetRepo(ctx context.Context, fullName string) (repoMeta, error) {
	var meta repoMeta
	url := fmt.Sprintf("%s/repos/%s", c.baseURL, fullName)
	if err := c.getJSON(ctx, "get repo", url, &meta); err != nil {
		return repoMeta{}, err
	}
	return meta, nil
}

// ListCommits fetches up to 100 most recent default-branch commits.
func (c *Client) ListCommits(ctx context.Context, fullName string) ([]commitMeta, error) {
	var commits []commitMeta
	url := fmt.Sprintf("%s/repos/%s/commits?per_page=100", c.baseURL, fullName)
	if err := c.getJSON(ctx, "list commits", url, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// DownloadZipball fetches the source archive of the default branch,
// refusing to read past maxBytes.
func (c *Client) DownloadZipball(ctx context.Context, fullName, branch string, maxBytes int64) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/zipball/%s", c.baseURL, fullName, branch)

	var data []byte
	err := c.exec.Execute(ctx, "download zipball", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := c.newRequest(ctx, url)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("github zipball request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newStatusError("download zipball", resp)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return fmt.Errorf("read zipball body: %w", err)
		}
		if int64(len(body)) > maxBytes {
			return fmt.Errorf("zipball for %s exceeds %d bytes", fullName, maxBytes)
		}
		data = body
		return nil
	}, classifyGitHubError)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, operation, url string, out any) error {
	return c.exec.Execute(ctx, operation, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := c.newRequest(ctx, url)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("github %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newStatusError(operation, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, classifyGitHubError)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "cv-sentinel/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
