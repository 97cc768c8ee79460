package cache

import (
	"container/list"
	"sync"
)

// Cache is a weight bounded cache that evicts the least recently used items
// once the total weight exceeds its budget.
type Cache interface {
	// Insert adds or replaces the value stored under key
	Insert(key string, value interface{}, weight int)

	// Retrieve gets the value stored under key, marking it as recently used
	Retrieve(key string) (interface{}, bool)

	// GetWeight returns the total weight of the cached items
	GetWeight() int

	// GetBudget returns the maximum total weight
	GetBudget() int

	Clear()
}

type entry struct {
	key    string
	value  interface{}
	weight int
}

type cache struct {
	mu sync.Mutex

	budget int
	weight int

	order  *list.List
	lookup map[string]*list.Element
}

// NewCache returns an empty cache bounded by budget.
func NewCache(budget int) Cache {
	return &cache{
		budget: budget,
		order:  list.New(),
		lookup: make(map[string]*list.Element),
	}
}

func (c *cache) Insert(key string, value interface{}, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lookup[key]; ok {
		c.remove(existing)
	}

	c.lookup[key] = c.order.PushFront(&entry{
		key:    key,
		value:  value,
		weight: weight,
	})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		c.remove(c.order.Back())
	}
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(element)
	return element.Value.(*entry).value, true
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}

func (c *cache) remove(element *list.Element) {
	removed := c.order.Remove(element).(*entry)
	delete(c.lookup, removed.key)
	c.weight -= removed.weight
}
