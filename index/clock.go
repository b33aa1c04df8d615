package index

import "time"

func wallNowMS() int64 {
	return time.Now().UnixMilli()
}
