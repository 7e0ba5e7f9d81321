package options

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// UserGroup is a resolved --user USER[:[GROUP]] target.
type UserGroup struct {
	UID int
	GID int
	// GIDSet is false when no group was given and initgroups should
	// supply the user's default group membership instead.
	GIDSet bool
}

// ParseUserGroup implements the `:`/`.` separator disambiguation rule
// verbatim from the original's handle_user_option (see DESIGN.md's Open
// Question decision #1): a `:` always separates user and group. Absent
// a `:`, a `.` is only treated as a separator (at the last `.`) if the
// whole value fails to resolve as a username on its own - this keeps usernames that
// legitimately contain a dot (common on NIS/LDAP-joined hosts) from
// being misparsed as `user.group`.
func ParseUserGroup(spec string) (UserGroup, error) {
	if spec == "" {
		return UserGroup{}, fmt.Errorf("options: empty --user value")
	}

	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		return resolveSplit(spec[:idx], spec[idx+1:])
	}

	if idx := strings.LastIndexByte(spec, '.'); idx >= 0 {
		if _, err := user.Lookup(spec); err == nil {
			return resolveSplit(spec, "")
		}
		return resolveSplit(spec[:idx], spec[idx+1:])
	}

	return resolveSplit(spec, "")
}

func resolveSplit(userPart, groupPart string) (UserGroup, error) {
	u, err := lookupUser(userPart)
	if err != nil {
		return UserGroup{}, err
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return UserGroup{}, fmt.Errorf("options: malformed uid for %q: %w", userPart, err)
	}

	ug := UserGroup{UID: uid}

	if groupPart == "" {
		gid, err := strconv.Atoi(u.Gid)
		if err != nil {
			return UserGroup{}, fmt.Errorf("options: malformed gid for %q: %w", userPart, err)
		}
		ug.GID = gid
		ug.GIDSet = false
		return ug, nil
	}

	g, err := user.LookupGroup(groupPart)
	if err != nil {
		return UserGroup{}, fmt.Errorf("options: unknown group %q: %w", groupPart, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return UserGroup{}, fmt.Errorf("options: malformed gid for group %q: %w", groupPart, err)
	}
	ug.GID = gid
	ug.GIDSet = true
	return ug, nil
}

func lookupUser(name string) (*user.User, error) {
	if u, err := user.Lookup(name); err == nil {
		return u, nil
	}
	if u, err := user.LookupId(name); err == nil {
		return u, nil
	}
	return nil, fmt.Errorf("options: unknown user %q", name)
}
