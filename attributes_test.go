package hxnav

import "testing"

func TestAttrFor(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		role   Role
		expect string
		ok     bool
	}{
		{"global store", "", RoleState, "hn-store", true},
		{"global value", "", RoleStateValue, "hn-store-value", true},
		{"global foreach", "", RoleForeach, "hn-foreach", true},
		{"page store", PagePrefix, RoleState, "hn-page-store", true},
		{"page initial", PagePrefix, RoleStateInitial, "hn-page-store-initial", true},
		{"page foreach", PagePrefix, RoleForeach, "hn-page-foreach", true},
		{"page falls back to global", PagePrefix, RoleEach, "hn-each", true},
		{"component prefix", "3f1c", RoleState, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AttrFor(tt.prefix, tt.role)
			if got != tt.expect || ok != tt.ok {
				t.Errorf("AttrFor(%q, %d) = %q, %v, want %q, %v", tt.prefix, tt.role, got, ok, tt.expect, tt.ok)
			}
		})
	}
}

func TestEveryRoleHasAnAttribute(t *testing.T) {
	seen := make(map[string]Role)
	for r := RoleIgnore; r <= RoleComponentUUID; r++ {
		name := r.Attr()
		if name == "" {
			t.Errorf("Role(%d) has no attribute", r)
			continue
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("Role(%d) and Role(%d) share %q", prev, r, name)
		}
		seen[name] = r
	}
}
