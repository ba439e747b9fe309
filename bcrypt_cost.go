//go:build !race

package enrollment

func passwordHashCost() int {
	return 12
}
