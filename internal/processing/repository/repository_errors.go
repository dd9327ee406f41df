package repository

import "errors"

var ErrProcessingOrderNotFound = errors.New("processing order not found")
