// Package userstore persists user accounts for the Moonlapse server.
//
// Accounts are stored as JSON values in a badger key-value store, keyed by
// the lower-cased username. Passwords are kept only as bcrypt hashes. An
// empty data directory opens an in-memory store that is discarded on Close.
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserNotFound is returned when no account has the requested username.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when registering a username that is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned for an empty username or password.
	ErrInvalidCredentials = errors.New("username and password must not be empty")
)

const keyPrefix = "user/"

// User is one stored account.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash []byte     `json:"password_hash"`
	Created      time.Time  `json:"created"`
	LastLoggedIn *time.Time `json:"last_logged_in,omitempty"`
}

// SetPassword replaces the stored hash with a bcrypt hash of password.
func (u *User) SetPassword(password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	return nil
}

// VerifyPassword reports whether password matches the stored hash.
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// Store is a badger-backed account store. It is safe for concurrent use.
type Store struct {
	db   *badger.DB
	cost int
}

// Open opens the store in dir, or an in-memory store when dir is empty.
// A cost of zero selects bcrypt.DefaultCost.
func Open(dir string, cost int) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Open",
		"dir":       dir,
		"in_memory": dir == "",
	}).Info("Opened user store")

	return &Store{db: db, cost: cost}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func userKey(username string) []byte {
	return []byte(keyPrefix + strings.ToLower(username))
}

// Create registers a new account.
func (s *Store) Create(username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user := &User{
		ID:       uuid.New(),
		Username: username,
		Created:  time.Now().UTC(),
	}
	if err := user.SetPassword(password, s.cost); err != nil {
		return nil, err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		if err == nil {
			return fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(userKey(username), data)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Create",
		"username": username,
		"user_id":  user.ID.String(),
	}).Info("Registered user")

	return user, nil
}

// FindByUsername returns the account for username.
func (s *Store) FindByUsername(username string) (*User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyCredentials reports whether password belongs to user.
func (s *Store) VerifyCredentials(user *User, password string) bool {
	return user != nil && user.VerifyPassword(password)
}

// RecordLogin stamps the account's last login time.
func (s *Store) RecordLogin(user *User) error {
	now := time.Now().UTC()
	user.LastLoggedIn = &now

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.Username), data)
	})
}
