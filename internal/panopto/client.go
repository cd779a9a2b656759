package panopto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	actionNamespace = "http://tempuri.org/"

	authService     = "/Panopto/PublicAPI/4.2/Auth.svc"
	userService     = "/Panopto/PublicAPI/4.6/UserManagement.svc"
	accessService   = "/Panopto/PublicAPI/4.6/AccessManagement.svc"
	sessionsService = "/Panopto/PublicAPI/4.6/SessionManagement.svc"

	maxFaultBody = 64 * 1024
)

var (
	ErrRemoteUnavailable = errors.New("panopto unavailable")
	ErrMalformedResponse = errors.New("malformed panopto response")
)

// Client talks to the Panopto public SOAP API of a single instance.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListGroupsByName(ctx context.Context, cred Credential, groupName string) ([]Group, error) {
	req := getGroupsByNameRequest{Auth: newAuthInfo(cred), GroupName: groupName}
	var resp getGroupsByNameResponse
	if err := call(ctx, c, userService, "IUserManagement/GetGroupsByName", req, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: GetGroupsByName: missing GetGroupsByNameResult", ErrMalformedResponse)
	}

	groups := make([]Group, 0, len(resp.Result.Groups))
	for _, wg := range resp.Result.Groups {
		if wg.Nil {
			continue
		}
		g, err := wg.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: GetGroupsByName: %v", ErrMalformedResponse, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (c *Client) GetGroupAccessDetails(ctx context.Context, cred Credential, groupID string) (*AccessDetails, error) {
	req := getGroupAccessDetailsRequest{Auth: newAuthInfo(cred), GroupID: groupID}
	var resp getGroupAccessDetailsResponse
	if err := call(ctx, c, accessService, "IAccessManagement/GetGroupAccessDetails", req, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: GetGroupAccessDetails: missing GetGroupAccessDetailsResult", ErrMalformedResponse)
	}
	return &AccessDetails{
		SessionGUIDs:       trimAll(resp.Result.SessionsWithViewerAccess.GUIDs),
		ViewerFolderGUIDs:  trimAll(resp.Result.FoldersWithViewerAccess.GUIDs),
		CreatorFolderGUIDs: trimAll(resp.Result.FoldersWithCreatorAccess.GUIDs),
	}, nil
}

// GetSessionsByID fetches all sessionIDs in one call. No ids means no call.
func (c *Client) GetSessionsByID(ctx context.Context, cred Credential, sessionIDs []string) ([]Session, error) {
	if len(sessionIDs) == 0 {
		return []Session{}, nil
	}
	req := getSessionsByIDRequest{Auth: newAuthInfo(cred), SessionIDs: guidArray{GUIDs: sessionIDs}}
	var resp getSessionsByIDResponse
	if err := call(ctx, c, sessionsService, "ISessionManagement/GetSessionsById", req, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: GetSessionsById: missing GetSessionsByIdResult", ErrMalformedResponse)
	}

	sessions := make([]Session, 0, len(resp.Result.Sessions))
	for _, ws := range resp.Result.Sessions {
		if ws.Nil {
			continue
		}
		s, err := ws.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: GetSessionsById: %v", ErrMalformedResponse, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// GetServerVersion needs no credential; it is used to check reachability.
func (c *Client) GetServerVersion(ctx context.Context) (string, error) {
	var resp getServerVersionResponse
	if err := call(ctx, c, authService, "IAuth/GetServerVersion", getServerVersionRequest{}, &resp); err != nil {
		return "", err
	}
	if resp.Result == nil {
		return "", fmt.Errorf("%w: GetServerVersion: missing GetServerVersionResult", ErrMalformedResponse)
	}
	return strings.TrimSpace(*resp.Result), nil
}

// OpenThumbnail streams a session thumbnail. Relative URLs are resolved
// against the instance.
func (c *Client) OpenThumbnail(ctx context.Context, thumbURL string) (*http.Response, error) {
	target, err := c.resolveURL(thumbURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxFaultBody))
		return nil, fmt.Errorf("%w: thumbnail download failed: %s %s", ErrRemoteUnavailable, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *Client) resolveURL(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty url")
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}
