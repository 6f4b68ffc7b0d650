package calendar

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:displayname/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`

// Client is a minimal CalDAV client: collection discovery by display
// name plus event PUT and DELETE. That is all the sync needs, so no
// full WebDAV stack.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     *slog.Logger

	mu    sync.Mutex
	paths map[string]string // display name -> collection href
}

func NewClient(baseURL, username, password string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		logger:     logger,
	}
}

// PutEvent uploads (or overwrites) one event in the named calendar.
func (c *Client) PutEvent(ctx context.Context, calendarName, uid, ics string) error {
	href, err := c.collectionHref(ctx, calendarName)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.eventURL(href, uid), strings.NewReader(ics))
	if err != nil {
		return fmt.Errorf("create put request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("put event %s: status %d", uid, resp.StatusCode)
	}
	return nil
}

// DeleteEvent removes one event. A 404 counts as success, the event
// is gone either way.
func (c *Client) DeleteEvent(ctx context.Context, calendarName, uid string) error {
	href, err := c.collectionHref(ctx, calendarName)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventURL(href, uid), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("delete event %s: status %d", uid, resp.StatusCode)
	}
	return nil
}

func (c *Client) eventURL(href, uid string) string {
	base, err := url.Parse(c.baseURL)
	if err != nil || !strings.HasPrefix(href, "/") {
		return strings.TrimRight(c.baseURL, "/") + "/" + strings.Trim(href, "/") + "/" + uid + ".ics"
	}
	return base.Scheme + "://" + base.Host + strings.TrimRight(href, "/") + "/" + uid + ".ics"
}

// collectionHref resolves a calendar display name to its href,
// discovering once and caching.
func (c *Client) collectionHref(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if href, ok := c.paths[name]; ok {
		return href, nil
	}
	if err := c.discover(ctx); err != nil {
		return "", err
	}
	href, ok := c.paths[name]
	if !ok {
		return "", fmt.Errorf("calendar %q not found on server", name)
	}
	return href, nil
}

type multistatus struct {
	Responses []struct {
		Href      string `xml:"href"`
		Propstats []struct {
			Prop struct {
				DisplayName  string `xml:"displayname"`
				ResourceType struct {
					Calendar *struct{} `xml:"calendar"`
				} `xml:"resourcetype"`
			} `xml:"prop"`
		} `xml:"propstat"`
	} `xml:"response"`
}

// discover PROPFINDs the base collection and indexes every calendar
// child by display name. Caller holds c.mu.
func (c *Client) discover(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.baseURL+"/", strings.NewReader(propfindBody))
	if err != nil {
		return fmt.Errorf("create propfind request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("propfind: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusMultiStatus {
		return fmt.Errorf("propfind: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read propfind response: %w", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return fmt.Errorf("parse propfind response: %w", err)
	}

	paths := map[string]string{}
	for _, r := range ms.Responses {
		for _, ps := range r.Propstats {
			if ps.Prop.ResourceType.Calendar != nil && ps.Prop.DisplayName != "" {
				paths[ps.Prop.DisplayName] = r.Href
			}
		}
	}
	c.paths = paths
	c.logger.Debug("discovered calendars", "count", len(paths))
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
