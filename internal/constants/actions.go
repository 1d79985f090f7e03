package constants

// Audit log actions.
const (
	Create     = "CREATE"
	Update     = "UPDATE"
	Delete     = "DELETE"
	Register   = "REGISTER"
	Login      = "LOGIN"
	Borrow     = "BORROW"
	Return     = "RETURN"
	AutoReturn = "AUTO_RETURN"
	Upload     = "UPLOAD"
)
