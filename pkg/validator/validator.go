package validator

import (
	"regexp"
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	maxPublicKeyLen = 16 * 1024
	maxContentLen   = 256 * 1024
	maxIPFSHashLen  = 128
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
var ipfsHashRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

func ValidateRegister(username, publicKey string) ValidationErrors {
	errs := make(ValidationErrors)

	validateUsername(username, errs)
	validatePublicKey(publicKey, errs)

	return errs
}

func ValidateLogin(username, proof string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(username) == "" {
		errs.Add("username", "Username is required")
	}
	if proof == "" {
		errs.Add("privateKeyProof", "Private key proof is required")
	}

	return errs
}

// ValidateAddContact follows the client request contract: the caller sends
// the contact's public key alongside the username even though only the
// username is used.
func ValidateAddContact(username, publicKey string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(username) == "" {
		errs.Add("username", "Username is required")
	}
	if strings.TrimSpace(publicKey) == "" {
		errs.Add("publicKey", "Public key is required")
	}

	return errs
}

func ValidateSendMessage(receiverID, content string, ipfsHash *string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(receiverID) == "" {
		errs.Add("receiverId", "Receiver ID is required")
	}

	if content == "" {
		errs.Add("content", "Content is required")
	} else if len(content) > maxContentLen {
		errs.Add("content", "Content is too long")
	}

	if ipfsHash != nil && *ipfsHash != "" {
		if len(*ipfsHash) > maxIPFSHashLen {
			errs.Add("ipfsHash", "IPFS hash is too long")
		} else if !ipfsHashRegex.MatchString(*ipfsHash) {
			errs.Add("ipfsHash", "IPFS hash can only contain letters and numbers")
		}
	}

	return errs
}

func validateUsername(username string, errs ValidationErrors) {
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}
}

func validatePublicKey(publicKey string, errs ValidationErrors) {
	if strings.TrimSpace(publicKey) == "" {
		errs.Add("publicKey", "Public key is required")
	} else if len(publicKey) > maxPublicKeyLen {
		errs.Add("publicKey", "Public key is too long")
	}
}
