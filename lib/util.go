package lib

import "fmt"
import "strconv"
import "strings"
import "encoding/json"

// Parsecsv convert a string of command seperated value into list of string of
// values.
func Parsecsv(input string) []string {
	if input == "" {
		return nil
	}
	ss := strings.Split(input, ",")
	outs := make([]string, 0)
	for _, s := range ss {
		s = strings.Trim(s, " \t\r\n")
		if s == "" {
			continue
		}
		outs = append(outs, s)
	}
	return outs
}

// Parsesizes convert a string of comma seperated byte counts into list
// of int64, sizes shall not be negative.
func Parsesizes(input string) ([]int64, error) {
	sizes := make([]int64, 0)
	for _, s := range Parsecsv(input) {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		} else if size < 0 {
			return nil, fmt.Errorf("negative size %v", size)
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// Prettystats uses json.MarshalIndent, if pretty is true, instead of
// json.Marshal. If Marshal return error Prettystats will panic.
func Prettystats(stats map[string]interface{}, pretty bool) string {
	if pretty {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			panic(err)
		}
		return string(data)
	}
	data, err := json.Marshal(stats)
	if err != nil {
		panic(err)
	}
	return string(data)
}
