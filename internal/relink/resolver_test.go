package relink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
)

type fakeService struct {
	groups   map[string][]panopto.Group
	access   map[string]*panopto.AccessDetails
	sessions map[string]panopto.Session

	listErr, accessErr, sessionsErr error

	creds       []panopto.Credential
	accessCalls []string
	sessionIDs  [][]string
}

func (f *fakeService) ListGroupsByName(_ context.Context, cred panopto.Credential, name string) ([]panopto.Group, error) {
	f.creds = append(f.creds, cred)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.groups[name], nil
}

func (f *fakeService) GetGroupAccessDetails(_ context.Context, cred panopto.Credential, groupID string) (*panopto.AccessDetails, error) {
	f.creds = append(f.creds, cred)
	f.accessCalls = append(f.accessCalls, groupID)
	if f.accessErr != nil {
		return nil, f.accessErr
	}
	if d, ok := f.access[groupID]; ok {
		return d, nil
	}
	return &panopto.AccessDetails{}, nil
}

func (f *fakeService) GetSessionsByID(_ context.Context, cred panopto.Credential, ids []string) ([]panopto.Session, error) {
	f.creds = append(f.creds, cred)
	f.sessionIDs = append(f.sessionIDs, ids)
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	var out []panopto.Session
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

var lecture = panopto.Session{ID: "s1", Name: "Lecture 3", FolderName: "Week 2", ThumbnailURL: "https://x/thumb.png"}

func completeInstances() []config.Instance {
	return []config.Instance{{ServerName: "tenant.example.com", ApplicationKey: "key", Slot: 1}}
}

func newTestResolver(instances []config.Instance, svc *fakeService) (*Resolver, *[]config.Instance) {
	var used []config.Instance
	r := NewResolver(instances, `moodle\relink-service`, func(inst config.Instance) SessionService {
		used = append(used, inst)
		return svc
	}, zerolog.Nop())
	return r, &used
}

func TestResolveEndToEnd(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"lti-group-42": {{ID: "g1", Name: "lti-group-42", Type: panopto.GroupTypeExternal}},
		},
		access:   map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"s1"}}},
		sessions: map[string]panopto.Session{"s1": lecture},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "lti-group-42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lecture, *got)
	assert.Equal(t, []string{"g1"}, svc.accessCalls)
	assert.Equal(t, [][]string{{"s1"}}, svc.sessionIDs)
}

func TestResolveNoExternalGroupIsNotFound(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"x": {
				{ID: "g0", Name: "x", Type: panopto.GroupTypeInternal},
				{ID: "g2", Name: "X", Type: panopto.GroupTypeExternal},
			},
		},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, svc.accessCalls)
}

func TestResolvePrefersExternalGroup(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"X": {
				{ID: "internal", Name: "X", Type: panopto.GroupTypeInternal},
				{ID: "external", Name: "X", Type: panopto.GroupTypeExternal},
			},
		},
		access:   map[string]*panopto.AccessDetails{"external": {SessionGUIDs: []string{"s1"}}},
		sessions: map[string]panopto.Session{"s1": lecture},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "X")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"external"}, svc.accessCalls)
}

func TestResolveEmptyAccessIsNotFound(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"g": {{ID: "g1", Name: "g", Type: panopto.GroupTypeExternal}},
		},
		access: map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: nil}},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "g")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, svc.sessionIDs, "no session lookup for empty access details")
}

func TestResolveNoSessionsReturnedIsNotFound(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"g": {{ID: "g1", Name: "g", Type: panopto.GroupTypeExternal}},
		},
		access: map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"gone"}}},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "g")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveBatchesAllGUIDsAndTakesFirst(t *testing.T) {
	second := panopto.Session{ID: "s2", Name: "Lecture 4"}
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"g": {{ID: "g1", Name: "g", Type: panopto.GroupTypeExternal}},
		},
		access:   map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"s2", "s1"}}},
		sessions: map[string]panopto.Session{"s1": lecture, "s2": second},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, svc.sessionIDs, 1)
	assert.Equal(t, []string{"s2", "s1"}, svc.sessionIDs[0])
	assert.Equal(t, second, *got)
}

func TestResolveSkipsIncompleteSlot(t *testing.T) {
	svc := &fakeService{}
	instances := []config.Instance{
		{ServerName: "one.example.com", Slot: 1},
		{ServerName: "two.example.com", ApplicationKey: "key-2", Slot: 2},
	}
	r, used := newTestResolver(instances, svc)
	r.WithSigner(func(payload, key string) string { return payload + "#" + key })

	_, err := r.Resolve(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, *used, 1)
	assert.Equal(t, 2, (*used)[0].Slot)
	require.NotEmpty(t, svc.creds)
	assert.Equal(t, `moodle\relink-service@two.example.com#key-2`, svc.creds[0].AuthCode)
	assert.Equal(t, `moodle\relink-service`, svc.creds[0].UserKey)
}

func TestResolveConfigurationMissingBeforeRemoteCall(t *testing.T) {
	svc := &fakeService{}
	r, used := newTestResolver([]config.Instance{{ServerName: "one.example.com"}}, svc)

	got, err := r.Resolve(context.Background(), "g")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, KindConfigurationMissing, KindOf(err))
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.Empty(t, *used)
	assert.Empty(t, svc.creds)
}

func TestResolveErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		svc  *fakeService
		want Kind
	}{
		{
			name: "list transport failure",
			svc:  &fakeService{listErr: fmt.Errorf("%w: dial tcp: refused", panopto.ErrRemoteUnavailable)},
			want: KindRemoteUnavailable,
		},
		{
			name: "access malformed",
			svc: &fakeService{
				groups:    map[string][]panopto.Group{"g": {{ID: "g1", Name: "g", Type: panopto.GroupTypeExternal}}},
				accessErr: fmt.Errorf("%w: missing result", panopto.ErrMalformedResponse),
			},
			want: KindMalformedResponse,
		},
		{
			name: "sessions unclassified",
			svc: &fakeService{
				groups:      map[string][]panopto.Group{"g": {{ID: "g1", Name: "g", Type: panopto.GroupTypeExternal}}},
				access:      map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"s1"}}},
				sessionsErr: errors.New("boom"),
			},
			want: KindRemoteUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestResolver(completeInstances(), tc.svc)
			got, err := r.Resolve(context.Background(), "g")
			assert.Nil(t, got)
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))

			var re *Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "g", re.Group)
		})
	}
}

func TestResolveReportsOutcome(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestResolver(completeInstances(), svc)
	var outcomes []Outcome
	r.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	_, err := r.Resolve(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.NotEmpty(t, outcomes[0].RequestID)
	assert.Equal(t, "g", outcomes[0].Group)
	assert.Equal(t, "tenant.example.com", outcomes[0].Instance.ServerName)
	assert.Nil(t, outcomes[0].Session)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration_missing", KindConfigurationMissing.String())
	assert.Equal(t, "remote_unavailable", KindRemoteUnavailable.String())
	assert.Equal(t, "malformed_response", KindMalformedResponse.String())
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestBatchContinuesPastFailures(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			"a": {{ID: "g1", Name: "a", Type: panopto.GroupTypeExternal}},
		},
		access:   map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"s1"}}},
		sessions: map[string]panopto.Session{"s1": lecture},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	var results []BatchResult
	err := Batch(context.Background(), r, []string{"a", " ", "b"}, rate.NewLimiter(rate.Inf, 1), func(res BatchResult) {
		results = append(results, res)
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Group)
	assert.Equal(t, lecture, *results[0].Session)
	assert.Equal(t, "b", results[1].Group)
	assert.Nil(t, results[1].Session)
	assert.NoError(t, results[1].Err)
}

func TestBatchStopsOnCanceledContext(t *testing.T) {
	r, _ := newTestResolver(completeInstances(), &fakeService{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := 0
	err := Batch(ctx, r, []string{"a", "b"}, nil, func(BatchResult) { called++ })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, called)
}

func TestResolveBlankGroupNameSkipsRemote(t *testing.T) {
	svc := &fakeService{}
	r, used := newTestResolver(completeInstances(), svc)
	reported := 0
	r.OnOutcome = func(Outcome) { reported++ }

	for _, name := range []string{"", "   "} {
		got, err := r.Resolve(context.Background(), name)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrEmptyGroupName)
	}
	assert.Empty(t, *used)
	assert.Empty(t, svc.creds)
	assert.Zero(t, reported)
}

func TestResolveMatchesGroupNameVerbatim(t *testing.T) {
	svc := &fakeService{
		groups: map[string][]panopto.Group{
			" lti-group-42 ": {{ID: "g1", Name: "lti-group-42", Type: panopto.GroupTypeExternal}},
		},
		access:   map[string]*panopto.AccessDetails{"g1": {SessionGUIDs: []string{"s1"}}},
		sessions: map[string]panopto.Session{"s1": lecture},
	}
	r, _ := newTestResolver(completeInstances(), svc)

	got, err := r.Resolve(context.Background(), " lti-group-42 ")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, svc.accessCalls)
}

func TestBatchPassesNamesUnchanged(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestResolver(completeInstances(), svc)

	var groups []string
	err := Batch(context.Background(), r, []string{" a ", "", "b"}, nil, func(res BatchResult) {
		groups = append(groups, res.Group)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{" a ", "b"}, groups)
}

const soapEnvelope = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>%s</s:Body></s:Envelope>`

// soapService answers each SOAPAction with a canned body through a real client.
func soapService(t *testing.T, bodies map[string]string) ServiceFactory {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[strings.Trim(r.Header.Get("SOAPAction"), `"`)]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = fmt.Fprintf(w, soapEnvelope, body)
	}))
	t.Cleanup(srv.Close)
	client := panopto.NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	return func(config.Instance) SessionService { return client }
}

func TestResolveNilOnlySessionsIsNotFound(t *testing.T) {
	services := soapService(t, map[string]string{
		"http://tempuri.org/IUserManagement/GetGroupsByName": `<GetGroupsByNameResponse xmlns="http://tempuri.org/">
<GetGroupsByNameResult xmlns:a="http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40">
<a:Group><a:GroupType>External</a:GroupType><a:Id>g1</a:Id><a:Name>lti-group-42</a:Name></a:Group>
</GetGroupsByNameResult></GetGroupsByNameResponse>`,
		"http://tempuri.org/IAccessManagement/GetGroupAccessDetails": `<GetGroupAccessDetailsResponse xmlns="http://tempuri.org/">
<GetGroupAccessDetailsResult xmlns:a="http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40" xmlns:b="http://schemas.microsoft.com/2003/10/Serialization/Arrays">
<a:SessionsWithViewerAccess><b:guid>gone</b:guid></a:SessionsWithViewerAccess>
</GetGroupAccessDetailsResult></GetGroupAccessDetailsResponse>`,
		"http://tempuri.org/ISessionManagement/GetSessionsById": `<GetSessionsByIdResponse xmlns="http://tempuri.org/">
<GetSessionsByIdResult xmlns:a="http://schemas.datacontract.org/2004/07/Panopto.Server.Services.PublicAPI.V40" xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
<a:Session i:nil="true"/>
</GetSessionsByIdResult></GetSessionsByIdResponse>`,
	})
	r := NewResolver(completeInstances(), `moodle\relink-service`, services, zerolog.Nop())

	got, err := r.Resolve(context.Background(), "lti-group-42")
	require.NoError(t, err)
	assert.Nil(t, got)
}
