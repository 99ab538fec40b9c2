package model

// MerchantCluster groups merchant keys believed to name the same payee.
type MerchantCluster struct {
	Canonical string   `json:"canonical"`
	Members   []string `json:"members"`
}

// Contains reports whether key is one of the cluster's members.
func (c MerchantCluster) Contains(key string) bool {
	for _, m := range c.Members {
		if m == key {
			return true
		}
	}
	return false
}
