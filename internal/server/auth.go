package server

import (
	"net/http"
	"strings"
)

// Role is a closed set. Capabilities are resolved from the role once at the
// API boundary; handlers never re-check roles.
type Role string

const (
	RoleEducator Role = "educator"
	RoleStudent  Role = "student"
	RoleAdmin    Role = "admin"
)

type Capability string

const (
	CapUploadVideo  Capability = "upload_video"
	CapDeleteVideo  Capability = "delete_video"
	CapViewVideo    Capability = "view_video"
	CapRecordWatch  Capability = "record_watch"
	CapViewAnyStats Capability = "view_any_stats"
)

var roleCaps = map[Role]map[Capability]struct{}{
	RoleStudent: {
		CapViewVideo:   {},
		CapRecordWatch: {},
	},
	RoleEducator: {
		CapUploadVideo: {},
		CapDeleteVideo: {},
		CapViewVideo:   {},
		CapRecordWatch: {},
	},
	RoleAdmin: {
		CapUploadVideo:  {},
		CapDeleteVideo:  {},
		CapViewVideo:    {},
		CapRecordWatch:  {},
		CapViewAnyStats: {},
	},
}

type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) Can(c Capability) bool {
	_, ok := roleCaps[p.Role][c]
	return ok
}

// authenticate resolves the bearer token to a principal. Tokens are issued
// out of band and mapped to users in the server configuration.
func (s *Server) authenticate(r *http.Request) (Principal, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return Principal{}, false
	}
	p, ok := s.cfg.Tokens[strings.TrimPrefix(h, "Bearer ")]
	return p, ok
}
