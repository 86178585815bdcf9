package walkback

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// Statistics records the costs of every epoch of training.
type Statistics struct {
	TrainCost []float32
	TestCost  []float32 // empty when the dataset has no TEST split
	Duration  []time.Duration
}

func makeStatistics() Statistics {
	return Statistics{
		TrainCost: make([]float32, 0, 64),
		TestCost:  make([]float32, 0, 64),
		Duration:  make([]time.Duration, 0, 64),
	}
}

func (s *Statistics) update(train float32, test *float32, took time.Duration) {
	s.TrainCost = append(s.TrainCost, train)
	if test != nil {
		s.TestCost = append(s.TestCost, *test)
	}
	s.Duration = append(s.Duration, took)
}

// Epochs is the number of epochs recorded.
func (s *Statistics) Epochs() int { return len(s.TrainCost) }

// Dump writes the statistics as CSV, one row per epoch.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"epoch", "train_cost", "test_cost", "seconds"}); err != nil {
		return err
	}
	records := make([][]string, 0, len(s.TrainCost))
	for i, cost := range s.TrainCost {
		record := make([]string, 4)
		record[0] = strconv.Itoa(i)
		record[1] = strconv.FormatFloat(float64(cost), 'f', 6, 32)
		if i < len(s.TestCost) {
			record[2] = strconv.FormatFloat(float64(s.TestCost[i]), 'f', 6, 32)
		}
		if i < len(s.Duration) {
			record[3] = strconv.FormatFloat(s.Duration[i].Seconds(), 'f', 3, 64)
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
