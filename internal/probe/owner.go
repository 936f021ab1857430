package probe

import (
	"os/user"
	"strconv"
)

// lookupUserName resolves uid to a user name, falling back to the
// decimal numeric id when the password database is unavailable or the
// id is unknown (spec §4.1, §9 "Owner-name resolution").
func lookupUserName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(uid), 10)
	}
	return u.Username
}

// lookupGroupName resolves gid to a group name with the same fallback.
func lookupGroupName(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(gid), 10)
	}
	return g.Name
}
