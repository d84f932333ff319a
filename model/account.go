package model

import "fmt"

// Account identifier convention: purely lexical, used
// throughout the engine and by ingress's balance-query alias resolution.

// CustomerAccountID returns the ledger account id for a customer.
func CustomerAccountID(tenant, accountRef string) string {
	return fmt.Sprintf("%s::acct::%s", tenant, accountRef)
}

// MerchantLiabilityAccountID returns the tenant's merchant liability
// account id.
func MerchantLiabilityAccountID(tenant string) string {
	return fmt.Sprintf("%s::merchant_liability", tenant)
}
