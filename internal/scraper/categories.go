package scraper

import "strings"

// categoryQuery builds the storefront category query URL.
func categoryQuery(baseURL, slug string) string {
	return strings.TrimSuffix(baseURL, "/") +
		"/c/pnpbase?query=:relevance:allCategories:pnpbase:category:" + slug
}

// DefaultTargets returns the six main categories scraped per run.
func DefaultTargets(baseURL string) []CategoryTarget {
	return []CategoryTarget{
		{
			URL:          categoryQuery(baseURL, "food-cupboard-423144840"),
			MainCategory: "Groceries",
			SubCategory:  "Food Cupboard",
		},
		{
			URL:          categoryQuery(baseURL, "household-and-cleaning-423144840"),
			MainCategory: "Cleaning and Household",
			SubCategory:  "Household and Cleaning",
		},
		{
			URL:          categoryQuery(baseURL, "personal-care-and-hygiene-423144840"),
			MainCategory: "Personal Care",
			SubCategory:  "Personal Care and Hygiene",
		},
		{
			URL:          categoryQuery(baseURL, "health-and-wellness-423144840"),
			MainCategory: "Health and Wellness",
			SubCategory:  "Health and Wellness",
		},
		{
			URL:          categoryQuery(baseURL, "electronics-and-office-423144840"),
			MainCategory: "Electronics",
			SubCategory:  "Electronics and Office",
		},
		{
			URL:          categoryQuery(baseURL, "stationery-423144840"),
			MainCategory: "Stationery",
			SubCategory:  "Stationery",
		},
	}
}
