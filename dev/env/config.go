package devenv

// EdupageTestConfig is dev/.state/edupage_config.json, the account live tests run against.
type EdupageTestConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Edupage is the school subdomain, optional when the account belongs to one school.
	Edupage string `json:"edupage"`
	// User picks an account when the credentials match several.
	User string `json:"user"`
}

const edupageTestConfig = "edupage_config.json"

// EdupageConfig reads the live test account. A missing file is os.ErrNotExist so callers can
// skip.
func EdupageConfig() (EdupageTestConfig, error) {
	return GetStateConfig[EdupageTestConfig](edupageTestConfig)
}
