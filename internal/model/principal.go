package model

// Role is what a signed-in account may do.
type Role string

const (
	RoleCustomer    Role = "Customer"
	RoleEmployee    Role = "Employee"
	RoleDeliveryman Role = "Deliveryman"
	RoleAdmin       Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleDeliveryman, RoleAdmin:
		return true
	}
	return false
}

// Principal is the resolved caller of an operation.
type Principal struct {
	Role     Role   `json:"role"`
	ID       string `json:"id"`
	BranchID string `json:"branchId,omitempty"`
}

// CanManageBranch reports whether the principal may drive preparation of
// orders placed at the branch.
func (p Principal) CanManageBranch(branchID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleEmployee:
		return p.BranchID == branchID
	}
	return false
}
