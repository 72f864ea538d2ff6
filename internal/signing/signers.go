package signing

import (
	"strings"

	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/diewo77/go-contracts/internal/validation"
)

// SameEmail compares addresses case-insensitively, ignoring surrounding space.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// PlanSigners returns the signers of doc in routing order: the customer, then
// the company signer unless it is absent or shares the customer's address.
// It fails with a *validation.Error before any provider is contacted.
func PlanSigners(doc *models.Document) ([]provider.Signer, error) {
	v := validation.Violations{}
	validation.Email("customer_email", doc.CustomerEmail, v)

	companyEmail := strings.TrimSpace(doc.CompanySignerEmail)
	if companyEmail != "" {
		validation.Email("company_signer_email", companyEmail, v)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	customer := provider.Signer{
		Role:         provider.RoleCustomer,
		Name:         displayName(doc.CustomerName, doc.CustomerEmail),
		Email:        strings.TrimSpace(doc.CustomerEmail),
		RoutingOrder: 1,
	}
	signers := []provider.Signer{customer}
	if companyEmail == "" || SameEmail(companyEmail, doc.CustomerEmail) {
		return signers, nil
	}
	return append(signers, provider.Signer{
		Role:         provider.RoleCompany,
		Name:         displayName(doc.CompanySignerName, companyEmail),
		Email:        companyEmail,
		RoutingOrder: 2,
	}), nil
}

// Split separates the signers declared when the request is created from the
// one added after the first signature, according to topology.
func Split(signers []provider.Signer, topology provider.Topology) (initial []provider.Signer, deferred *provider.Signer) {
	if topology != provider.TopologyAddOnSign || len(signers) < 2 {
		return signers, nil
	}
	d := signers[1]
	return signers[:1], &d
}

func displayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return strings.TrimSpace(email)
}
