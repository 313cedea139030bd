// Package actor carries the opaque caller identity through the core.
// Authentication happens upstream; this is just {userId, role}.
package actor

import "github.com/bwmarrin/snowflake"

type Role string

const (
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type Actor struct {
	UserID snowflake.ID
	Role   Role
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsEmployee() bool { return a.Role == RoleEmployee }
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }
