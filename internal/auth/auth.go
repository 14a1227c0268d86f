// Package auth authenticates session users against a configured directory
// of bcrypt password hashes and resolves their group membership.
package auth

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for an unknown user or a wrong password.
var ErrBadCredentials = errors.New("auth: bad credentials")

// User is one directory entry. Groups are in membership order.
type User struct {
	Name         string
	PasswordHash string
	Groups       []string
}

// dummyHash keeps the cost of rejecting unknown users equal to the cost of
// rejecting a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("kas"), bcrypt.MinCost)

// Directory is an immutable-snapshot user table safe for concurrent use.
type Directory struct {
	users atomic.Pointer[map[string]User]
}

// NewDirectory validates users and builds a directory.
func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{}
	if err := d.Replace(users); err != nil {
		return nil, err
	}
	return d, nil
}

// Replace swaps the user table. Nothing changes when any entry is invalid.
func (d *Directory) Replace(users []User) error {
	m := make(map[string]User, len(users))
	for _, u := range users {
		if u.Name == "" {
			return errors.New("auth: user without name")
		}
		if _, dup := m[u.Name]; dup {
			return fmt.Errorf("auth: duplicate user %q", u.Name)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return fmt.Errorf("auth: user %q: password hash: %w", u.Name, err)
		}
		u.Groups = append([]string(nil), u.Groups...)
		m[u.Name] = u
	}
	d.users.Store(&m)
	return nil
}

// Authenticate checks name and password.
func (d *Directory) Authenticate(name, password string) error {
	u, ok := (*d.users.Load())[name]
	hash := []byte(u.PasswordHash)
	if !ok {
		hash = dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return ErrBadCredentials
	}
	return nil
}

// GroupsOf implements access.GroupResolver.
func (d *Directory) GroupsOf(name string) []string {
	return (*d.users.Load())[name].Groups
}

// Len returns the number of users.
func (d *Directory) Len() int { return len(*d.users.Load()) }

// HashPassword returns a bcrypt hash of password. cost <= 0 uses the bcrypt
// default.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
