package model

import "github.com/google/go-github/v66/github"

// RepositoryDescriptor is the minimal repository shape needed from the list repositories call
type RepositoryDescriptor struct {
	Name       string  `json:"name"`
	Language   *string `json:"language,omitempty"` // nil when github detected no primary language
	OwnerLogin *string `json:"ownerLogin,omitempty"`
}

func NewRepositoryDescriptor(r *github.Repository) RepositoryDescriptor {
	descriptor := RepositoryDescriptor{
		Name:     r.GetName(),
		Language: r.Language,
	}

	if r.Owner != nil {
		descriptor.OwnerLogin = r.Owner.Login
	}

	return descriptor
}

// OwnerOr returns the owner login reported by github, or fallback when github sent none
func (r RepositoryDescriptor) OwnerOr(fallback string) string {
	if r.OwnerLogin == nil || *r.OwnerLogin == "" {
		return fallback
	}

	return *r.OwnerLogin
}
