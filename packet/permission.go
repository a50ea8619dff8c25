package packet

import "github.com/cooldogedev/conduit/payload"

// TagPermission ...
const TagPermission Tag = "moderation:permission"

// StatedPermission is a permission together with whether it is granted.
type StatedPermission struct {
	Name    string
	Allowed bool
}

// Allow returns the granted state of the permission name.
func Allow(name string) StatedPermission {
	return StatedPermission{Name: name, Allowed: true}
}

// Deny returns the revoked state of the permission name.
func Deny(name string) StatedPermission {
	return StatedPermission{Name: name}
}

// Permission is sent by the server to enable or disable client features for a player.
type Permission struct {
	// Permissions are applied by the client in the order they are listed.
	Permissions []StatedPermission
}

// NewPermission ...
func NewPermission(permissions ...StatedPermission) *Permission {
	return &Permission{Permissions: permissions}
}

// Tag ...
func (pk *Permission) Tag() Tag {
	return TagPermission
}

// Encode ...
func (pk *Permission) Encode(w *payload.Writer) error {
	payload.WriteCollection(w, pk.Permissions, func(w *payload.Writer, p StatedPermission) {
		w.WriteString(p.Name)
		w.WriteBool(p.Allowed)
	})
	return w.Err()
}

// Decode ...
func (pk *Permission) Decode(r *payload.Reader) (err error) {
	pk.Permissions, err = payload.ReadList(r, func(r *payload.Reader) (StatedPermission, error) {
		name, err := r.ReadString()
		if err != nil {
			return StatedPermission{}, err
		}
		allowed, err := r.ReadBool()
		if err != nil {
			return StatedPermission{}, err
		}
		return StatedPermission{Name: name, Allowed: allowed}, nil
	})
	return err
}
