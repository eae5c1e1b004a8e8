package models

// Branches - фиксированный список филиалов, из которых приходят записи.
var Branches = []string{
	"중앙지사",
	"강북지사",
	"서대문지사",
	"고양지사",
	"의정부지사",
	"남양주지사",
	"강릉지사",
	"원주지사",
}

// IsValidBranch сообщает, входит ли филиал в фиксированный список.
func IsValidBranch(branch string) bool {
	for _, b := range Branches {
		if b == branch {
			return true
		}
	}
	return false
}
