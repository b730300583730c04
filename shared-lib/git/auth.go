package git

// Auth holds authentication credentials for Git repository access.
//
// Note: For GitHub and similar services, use personal access tokens instead of passwords.
// A CI job token works as well, with any non-empty username.
type Auth struct {
	Username string // Username for Git authentication
	Token    string // Personal access token or password for authentication
	CABundle []byte // CA bundle (PEM encoded) for self-signed certificates
}
