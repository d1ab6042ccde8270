package model

// User represents a health worker account
type User struct {
	ID                 int64   `json:"id" db:"id"`
	Username           *string `json:"username" db:"username"`
	Email              string  `json:"email" db:"email"`
	FirstName          *string `json:"firstName" db:"first_name"`
	PasswordHash       string  `json:"-" db:"password"`
	HealthFacilityName *string `json:"healthFacilityName" db:"health_facility_name"`
	Timestamps

	Roles []RoleName `json:"-" db:"-"`
	// Supervises holds the users linked through the supervises table when this user is a CHO.
	Supervises []*User `json:"-" db:"-"`
}

func (u *User) HasRole(role RoleName) bool {
	return HasRole(u.Roles, role)
}

// UserView is the external representation of a user; it never carries the password.
type UserView struct {
	ID                 int64      `json:"id"`
	Username           *string    `json:"username"`
	Email              string     `json:"email"`
	FirstName          *string    `json:"firstName"`
	HealthFacilityName *string    `json:"healthFacilityName"`
	Roles              []RoleName `json:"roleIds"`
	VHTList            []int64    `json:"vhtList"`
}

func NewUserView(u *User) *UserView {
	roles := u.Roles
	if roles == nil {
		roles = []RoleName{}
	}
	vhts := make([]int64, 0, len(u.Supervises))
	for _, v := range u.Supervises {
		vhts = append(vhts, v.ID)
	}
	return &UserView{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		HealthFacilityName: u.HealthFacilityName,
		Roles:              roles,
		VHTList:            vhts,
	}
}

func NewUserViews(users []*User) []*UserView {
	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, NewUserView(u))
	}
	return views
}

// RegisterRequest mirrors the registration payload; unknown fields are rejected by the handler.
type RegisterRequest struct {
	Username           string `json:"username" validate:"omitempty,max=64"`
	Email              string `json:"email" validate:"required,email,max=120"`
	FirstName          string `json:"firstName" validate:"omitempty,max=25"`
	Role               string `json:"role" validate:"omitempty,oneof=VHT HCW ADMIN CHO"`
	HealthFacilityName string `json:"healthFacilityName" validate:"omitempty,max=50"`
	Password           string `json:"password" validate:"required,min=5,max=72"`
}

// Patch keys that are relation instructions rather than columns.
const (
	PatchNewVHTIDs  = "newVhtIds"
	PatchNewRoleIDs = "newRoleIds"
)

// UserColumns maps the patchable JSON keys of a user to their columns.
var UserColumns = map[string]string{
	"username":           "username",
	"email":              "email",
	"firstName":          "first_name",
	"healthFacilityName": "health_facility_name",
}

// UserColumnMaxLen holds the column widths of the patchable user fields, in characters.
var UserColumnMaxLen = map[string]int{
	"username":           64,
	"email":              120,
	"firstName":          25,
	"healthFacilityName": 50,
}

// UserPatch is a partial update: only keys present in Fields are written.
type UserPatch struct {
	Fields     map[string]interface{}
	NewVHTIDs  []int64
	NewRoleIDs []int64
}
