package jsonfile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/classchat/internal/core/chat"
	"golang.org/x/crypto/bcrypt"
)

// DirectoryFile is the root JSON structure of the directory file.
type DirectoryFile struct {
	Classes  []chat.Class   `json:"classes"`
	Users    []chat.User    `json:"users"`
	Channels []chat.Channel `json:"channels"`
}

// Directory implements chat.Directory and chat.ChannelCatalog using a single
// JSON file. Security codes are stored as bcrypt hashes.
type Directory struct {
	path string
	cost int
	mu   sync.RWMutex
}

// NewDirectory creates a new directory at the given path.
func NewDirectory(path string) *Directory {
	return &Directory{path: path, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost used when hashing new security codes.
func (d *Directory) WithCost(cost int) *Directory {
	d.cost = cost
	return d
}

func (d *Directory) read(fn func(file DirectoryFile) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return withFileLock(d.path+".lock", syscall.LOCK_SH, func() error {
		file, err := d.load()
		if err != nil {
			return err
		}
		return fn(file)
	})
}

// update loads the file, applies fn, and saves the result unless fn fails.
func (d *Directory) update(fn func(file *DirectoryFile) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return withFileLock(d.path+".lock", syscall.LOCK_EX, func() error {
		file, err := d.load()
		if err != nil {
			return err
		}
		if err := fn(&file); err != nil {
			return err
		}
		return writeJSON(d.path, file)
	})
}

func (d *Directory) load() (DirectoryFile, error) {
	var file DirectoryFile
	if _, err := readJSON(d.path, &file); err != nil {
		return DirectoryFile{}, err
	}
	return file, nil
}

func matchCode(classes []chat.Class, code string) (chat.Class, bool) {
	for _, c := range classes {
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) == nil {
			return c, true
		}
	}
	return chat.Class{}, false
}

// CreateClass registers a class guarded by code. Codes must be unique.
func (d *Directory) CreateClass(ctx context.Context, name, code string) (chat.Class, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), d.cost)
	if err != nil {
		return chat.Class{}, fmt.Errorf("hash security code: %w", err)
	}

	class := chat.Class{
		ID:        generateID(),
		Name:      name,
		CodeHash:  string(hash),
		CreatedAt: time.Now(),
	}

	err = d.update(func(file *DirectoryFile) error {
		if _, taken := matchCode(file.Classes, code); taken {
			return chat.ErrCodeInUse
		}
		file.Classes = append(file.Classes, class)
		return nil
	})
	if err != nil {
		return chat.Class{}, err
	}
	return class, nil
}

// ResolveClass returns the class whose security code matches code.
func (d *Directory) ResolveClass(ctx context.Context, code string) (chat.Class, error) {
	var class chat.Class
	err := d.read(func(file DirectoryFile) error {
		c, ok := matchCode(file.Classes, code)
		if !ok {
			return chat.ErrClassNotFound
		}
		class = c
		return nil
	})
	return class, err
}

// GetClass returns a class by ID.
func (d *Directory) GetClass(ctx context.Context, classID string) (chat.Class, error) {
	var class chat.Class
	err := d.read(func(file DirectoryFile) error {
		i := slices.IndexFunc(file.Classes, func(c chat.Class) bool { return c.ID == classID })
		if i < 0 {
			return chat.ErrNotFound
		}
		class = file.Classes[i]
		return nil
	})
	return class, err
}

// CreateUser registers a new user in classID.
func (d *Directory) CreateUser(ctx context.Context, classID, name, avatar string) (chat.User, error) {
	user := chat.User{
		ID:        generateID(),
		ClassID:   classID,
		Name:      name,
		Avatar:    avatar,
		CreatedAt: time.Now(),
	}

	err := d.update(func(file *DirectoryFile) error {
		if !slices.ContainsFunc(file.Classes, func(c chat.Class) bool { return c.ID == classID }) {
			return chat.ErrClassNotFound
		}
		file.Users = append(file.Users, user)
		return nil
	})
	if err != nil {
		return chat.User{}, err
	}
	return user, nil
}

// GetUser returns a user by ID. Returns chat.ErrNotFound if missing.
func (d *Directory) GetUser(ctx context.Context, userID string) (chat.User, error) {
	var user chat.User
	err := d.read(func(file DirectoryFile) error {
		i := slices.IndexFunc(file.Users, func(u chat.User) bool { return u.ID == userID })
		if i < 0 {
			return chat.ErrNotFound
		}
		user = file.Users[i]
		return nil
	})
	return user, err
}

// IsAdmin reports whether userID holds admin rights. Unknown users are not
// admins.
func (d *Directory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := d.GetUser(ctx, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Admin, nil
}

// ListUsers returns the users of classID ordered by name.
func (d *Directory) ListUsers(ctx context.Context, classID string) ([]chat.User, error) {
	var users []chat.User
	err := d.read(func(file DirectoryFile) error {
		for _, u := range file.Users {
			if u.ClassID == classID {
				users = append(users, u)
			}
		}
		return nil
	})

	slices.SortFunc(users, func(a, b chat.User) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return users, err
}

// SaveUser updates an existing user. Returns chat.ErrNotFound if missing.
func (d *Directory) SaveUser(ctx context.Context, user chat.User) error {
	return d.update(func(file *DirectoryFile) error {
		i := slices.IndexFunc(file.Users, func(u chat.User) bool { return u.ID == user.ID })
		if i < 0 {
			return chat.ErrNotFound
		}
		file.Users[i] = user
		return nil
	})
}

// ListChannels returns the channels of classID in creation order.
func (d *Directory) ListChannels(ctx context.Context, classID string) ([]chat.Channel, error) {
	var channels []chat.Channel
	err := d.read(func(file DirectoryFile) error {
		for _, ch := range file.Channels {
			if ch.ClassID == classID {
				channels = append(channels, ch)
			}
		}
		return nil
	})
	return channels, err
}

// InsertChannel adds a channel. Returns chat.ErrDuplicateChannelID if the
// class already has a channel with that id.
func (d *Directory) InsertChannel(ctx context.Context, ch chat.Channel) error {
	return d.update(func(file *DirectoryFile) error {
		for _, existing := range file.Channels {
			if existing.ClassID == ch.ClassID && existing.ID == ch.ID {
				return chat.ErrDuplicateChannelID
			}
		}
		file.Channels = append(file.Channels, ch)
		return nil
	})
}

// DeleteChannel removes a channel. Returns chat.ErrNotFound if missing.
func (d *Directory) DeleteChannel(ctx context.Context, classID, channelID string) error {
	return d.update(func(file *DirectoryFile) error {
		i := slices.IndexFunc(file.Channels, func(ch chat.Channel) bool {
			return ch.ClassID == classID && ch.ID == channelID
		})
		if i < 0 {
			return chat.ErrNotFound
		}
		file.Channels = slices.Delete(file.Channels, i, i+1)
		return nil
	})
}
