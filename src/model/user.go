package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"name"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	Balance      float64   `json:"balance"`
	IsPublic     bool      `json:"is_public"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
	INSERT INTO users (username, email, password, balance, is_public, profile_image, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(query,
		u.Username,
		u.Email,
		u.Password,
		u.Balance,
		u.IsPublic,
		u.ProfileImage,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

const userColumns = `id, username, email, password, balance, is_public, profile_image, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var profileImage sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.Balance,
		&user.IsPublic, &profileImage, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.ProfileImage = profileImage.String
	return &user, nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByUsername does a case-insensitive, whitespace-trimmed match, since
// public profile URLs carry usernames typed by other people.
func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(TRIM(username)) = LOWER(TRIM(?))`, username)
	return scanUser(row)
}

// SetUserPrivacy flips the is_public flag that gates the public profile and
// leaderboard.
func SetUserPrivacy(db *sql.DB, userID int64, isPublic bool) error {
	res, err := db.Exec(`UPDATE users SET is_public = ?, updated_at = ? WHERE id = ?`, isPublic, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPublicUsers returns every user whose profile is public, in insertion
// order. The leaderboard ranks over this set only.
func ListPublicUsers(db *sql.DB) ([]*User, error) {
	rows, err := db.Query(`SELECT ` + userColumns + ` FROM users WHERE is_public = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var profileImage sql.NullString
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.Password, &user.Balance,
			&user.IsPublic, &profileImage, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		user.ProfileImage = profileImage.String
		users = append(users, &user)
	}
	return users, rows.Err()
}

// IsNotFound reports whether a lookup error means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
