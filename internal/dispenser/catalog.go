package dispenser

// Coin and bill values offered by the dispenser.
var (
	coinCatalog = []int{1, 5, 10, 20, 25, 50}
	billCatalog = []int{20, 50, 100, 200, 500, 1000}
)

// Coins returns the coin catalog in ascending order.
func Coins() []int {
	return append([]int(nil), coinCatalog...)
}

// Bills returns the bill catalog in ascending order.
func Bills() []int {
	return append([]int(nil), billCatalog...)
}
