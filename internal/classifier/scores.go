package classifier

// Scores holds one confidence value per gesture class.
type Scores []float64

// Argmax returns the index and value of the highest score. Ties resolve to the
// lowest index. An empty vector returns -1.
func (s Scores) Argmax() (int, float64) {
	if len(s) == 0 {
		return -1, 0
	}
	best := 0
	for i := 1; i < len(s); i++ {
		if s[i] > s[best] {
			best = i
		}
	}
	return best, s[best]
}
