package keys

// ProofVerifier decides whether a login proof demonstrates possession of
// the private key registered for username.
type ProofVerifier interface {
	VerifyProof(username, proof string) bool
}

// ProofVerifierFunc adapts a plain function.
type ProofVerifierFunc func(username, proof string) bool

func (f ProofVerifierFunc) VerifyProof(username, proof string) bool {
	return f(username, proof)
}

// AcceptAnyProof trusts every non-empty proof. It is the development
// policy; deployments that need real login swap in their own verifier.
var AcceptAnyProof ProofVerifier = ProofVerifierFunc(func(_, proof string) bool {
	return proof != ""
})
