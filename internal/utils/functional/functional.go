package functional

// Map applies fn to each element and returns the results in order.
func Map[T any, U any](slice []T, fn func(T) U) []U {
	result := make([]U, len(slice))
	for i, item := range slice {
		result[i] = fn(item)
	}
	return result
}

// GroupBy buckets elements by key, preserving input order within each bucket.
func GroupBy[T any, K comparable](slice []T, key func(T) K) map[K][]T {
	result := make(map[K][]T)
	for _, item := range slice {
		k := key(item)
		result[k] = append(result[k], item)
	}
	return result
}
