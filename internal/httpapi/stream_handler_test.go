package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/stream"
)

func TestEventsRequireAuth(t *testing.T) {
	api := newTestAPI(t, &stubSessions{}, newMemDirectory())

	resp := api.get("/v1/workspace/events", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestEventsFilteredToSubscriber(t *testing.T) {
	sessions, dir := orgScenario(t, permission.RoleMember)
	st := stream.New()
	api := newTestAPIWithStream(t, sessions, dir, st)

	resp := api.get("/v1/workspace/events", nil, bearerFor(t, "user-1"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read stream preamble: %v", err)
	}
	if !strings.HasPrefix(line, ":") {
		t.Fatalf("expected comment preamble, got %q", line)
	}

	// An event addressed to another user must never reach this
	// subscriber, even though the fan-out itself is global.
	st.Publish(stream.PermissionUpdated("org-9", "member-9", "user-9", "precision", "admin"))
	st.Publish(stream.PermissionUpdated("org-1", "member-1", "user-1", "momentum", "read"))

	var event stream.WorkspaceEvent
	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		break
	}
	if event.UserID != "user-1" || event.OrganizationID != "org-1" {
		t.Fatalf("received event for the wrong user: %+v", event)
	}
	if event.App != "momentum" || event.Permission != "read" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}
