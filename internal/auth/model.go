package auth

import "time"

type User struct {
	ID             int64
	Username       string
	HashedPassword []byte
	CreatedAt      time.Time
}
