package permission

import (
	"encoding/json"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, want := range Levels() {
		got, err := ParseLevel(want.String())
		if err != nil {
			t.Fatalf("ParseLevel(%s): %v", want, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%s) = %s", want, got)
		}
	}
	if _, err := ParseLevel("superuser"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevelJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Write)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"write"` {
		t.Fatalf("unexpected encoding: %s", data)
	}
	var l Level
	if err := json.Unmarshal(data, &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if l != Write {
		t.Fatalf("round trip produced %s", l)
	}

	if _, err := json.Marshal(Level(42)); err == nil {
		t.Fatalf("expected marshal error for out-of-range level")
	}
	if err := json.Unmarshal([]byte(`"root"`), &l); err == nil {
		t.Fatalf("expected unmarshal error for unknown name")
	}
}

func TestParseAppAndRole(t *testing.T) {
	if _, err := ParseApp("precision"); err != nil {
		t.Fatalf("precision must parse: %v", err)
	}
	if _, err := ParseApp("sidecar"); err == nil {
		t.Fatalf("expected error for unregistered app")
	}

	role, err := ParseRole("owner")
	if err != nil || role != RoleOwner {
		t.Fatalf("ParseRole(owner) = %v, %v", role, err)
	}
	if _, err := ParseRole("superadmin"); err == nil {
		t.Fatalf("expected error for unknown role")
	}

	if !RoleOwner.CanManageMembers() || !RoleAdmin.CanManageMembers() {
		t.Fatalf("owner/admin must manage members")
	}
	if RoleMember.CanManageMembers() || RoleGuest.CanManageMembers() {
		t.Fatalf("member/guest must not manage members")
	}
}

func TestLabels(t *testing.T) {
	if Read.Label() != "View Only" {
		t.Fatalf("unexpected read label: %s", Read.Label())
	}
	if Admin.Label() != "Full Access" {
		t.Fatalf("unexpected admin label: %s", Admin.Label())
	}
	if RoleGuest.Label() != "Guest" {
		t.Fatalf("unexpected guest label: %s", RoleGuest.Label())
	}
}
